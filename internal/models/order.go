// Package models 定义数据模型
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 订单快照（由订单服务写入，本服务只读）
type Order struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	TenantID    int64           `gorm:"index;not null" json:"tenant_id"`
	MemberID    int64           `gorm:"index;not null" json:"member_id"`
	ShareUserID *int64          `gorm:"index" json:"share_user_id,omitempty"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status      string          `gorm:"type:varchar(20);not null" json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName 表名
func (Order) TableName() string {
	return "orders"
}

// OrderStatus 订单状态
const (
	OrderStatusPaid     = "PAID"     // 已支付
	OrderStatusRefunded = "REFUNDED" // 已退款
)

// OrderItem 订单明细
type OrderItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64           `gorm:"index;not null" json:"order_id"`
	SkuID       int64           `gorm:"index;not null" json:"sku_id"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
}

// TableName 表名
func (OrderItem) TableName() string {
	return "order_items"
}

// SkuDistribution SKU 分销规则
type SkuDistribution struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SkuID     int64           `gorm:"uniqueIndex;not null" json:"sku_id"`
	Mode      string          `gorm:"type:varchar(10);not null;default:'NONE'" json:"mode"`
	Rate      decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"rate"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (SkuDistribution) TableName() string {
	return "sku_distributions"
}

// DistributionMode SKU 佣金基数计算方式
const (
	DistributionModeNone  = "NONE"  // 不参与分销
	DistributionModeRatio = "RATIO" // 按明细金额比例
	DistributionModeFixed = "FIXED" // 按件固定金额
)
