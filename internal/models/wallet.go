package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet 会员佣金钱包，Version 为乐观锁版本号
type Wallet struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID    int64           `gorm:"uniqueIndex;not null" json:"member_id"`
	TenantID    int64           `gorm:"index;not null" json:"tenant_id"`
	Balance     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	Frozen      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"frozen"`
	TotalIncome decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_income"`
	Version     int64           `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Wallet) TableName() string {
	return "wallets"
}

// WalletTransaction 钱包流水，只追加
type WalletTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID      int64           `gorm:"index;not null" json:"wallet_id"`
	MemberID      int64           `gorm:"index;not null" json:"member_id"`
	TenantID      int64           `gorm:"not null" json:"tenant_id"`
	Type          string          `gorm:"type:varchar(32);not null" json:"type"`
	Account       string          `gorm:"type:varchar(10);not null;default:'balance'" json:"account"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	RelatedID     *int64          `gorm:"index" json:"related_id,omitempty"`
	Remark        string          `gorm:"type:varchar(255);not null;default:''" json:"remark"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// WalletTransactionType 流水类型
const (
	TxTypeCommissionSettle   = "COMMISSION_SETTLE"   // 佣金入账
	TxTypeCommissionRollback = "COMMISSION_ROLLBACK" // 退款回扣佣金
	TxTypeWithdrawFreeze     = "WITHDRAW_FREEZE"     // 提现冻结
	TxTypeWithdrawUnfreeze   = "WITHDRAW_UNFREEZE"   // 提现驳回解冻
	TxTypeWithdrawPaid       = "WITHDRAW_PAID"       // 提现打款成功
)

// WalletAccount 流水记账科目；按 ID 顺序回放 balance 科目流水可重建余额
const (
	AccountBalance = "balance"
	AccountFrozen  = "frozen"
)
