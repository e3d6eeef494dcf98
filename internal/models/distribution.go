package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DistributionConfig 租户分销配置
type DistributionConfig struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID          int64           `gorm:"uniqueIndex;not null" json:"tenant_id"`
	Level1Rate        decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"level1_rate"`
	Level2Rate        decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"level2_rate"`
	EnableCrossTenant bool            `gorm:"not null;default:false" json:"enable_cross_tenant"`
	CrossTenantRate   decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"cross_tenant_rate"`
	CrossMaxDaily     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cross_max_daily"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (DistributionConfig) TableName() string {
	return "distribution_configs"
}

// Commission 佣金记录，(OrderID, BeneficiaryID, Level) 唯一
type Commission struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64           `gorm:"uniqueIndex:uk_commission_order_beneficiary_level,priority:1;not null" json:"order_id"`
	BeneficiaryID       int64           `gorm:"uniqueIndex:uk_commission_order_beneficiary_level,priority:2;index;not null" json:"beneficiary_id"`
	Level               int             `gorm:"uniqueIndex:uk_commission_order_beneficiary_level,priority:3;not null" json:"level"`
	TenantID            int64           `gorm:"index;not null" json:"tenant_id"`             // 订单所属租户
	BeneficiaryTenantID int64           `gorm:"index;not null" json:"beneficiary_tenant_id"` // 受益人所属租户，入账钱包按它创建
	BuyerID             int64           `gorm:"not null" json:"buyer_id"`
	BaseAmount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_amount"`
	RateSnapshot        decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"rate_snapshot"`
	Amount              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status              string          `gorm:"type:varchar(20);index;not null" json:"status"`
	IsCrossTenant       bool            `gorm:"not null;default:false" json:"is_cross_tenant"`
	PlanSettleTime      time.Time       `gorm:"index;not null" json:"plan_settle_time"`
	SettleTime          *time.Time      `json:"settle_time,omitempty"`
	CancelTime          *time.Time      `json:"cancel_time,omitempty"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Commission) TableName() string {
	return "commissions"
}

// CommissionStatus 佣金状态
const (
	CommissionStatusFrozen    = "FROZEN"    // 冻结中，等待结算
	CommissionStatusSettled   = "SETTLED"   // 已入账
	CommissionStatusCancelled = "CANCELLED" // 已取消
)

// CommissionLevel 佣金层级
const (
	CommissionLevel1 = 1 // 直推
	CommissionLevel2 = 2 // 间推
)

// CommissionDailyTotal 跨租户佣金日累计，作为日限额检查的行锁载体
type CommissionDailyTotal struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID      int64           `gorm:"uniqueIndex:uk_daily_total_key,priority:1;not null" json:"tenant_id"`
	BeneficiaryID int64           `gorm:"uniqueIndex:uk_daily_total_key,priority:2;not null" json:"beneficiary_id"`
	StatDate      string          `gorm:"type:varchar(10);uniqueIndex:uk_daily_total_key,priority:3;not null" json:"stat_date"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CommissionDailyTotal) TableName() string {
	return "commission_daily_totals"
}
