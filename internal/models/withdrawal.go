package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal 提现申请，WithdrawalNo 同时作为打款幂等键
type Withdrawal struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	TenantID           int64           `gorm:"index;not null" json:"tenant_id"`
	MemberID           int64           `gorm:"index;not null" json:"member_id"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method             string          `gorm:"type:varchar(20);not null" json:"method"`
	AccountInfo        string          `gorm:"type:varchar(512)" json:"-"` // 加密后的收款账户
	AccountMasked      string          `gorm:"-" json:"account_info,omitempty"`
	Status             string          `gorm:"type:varchar(20);index;not null" json:"status"`
	AuditBy            *int64          `json:"audit_by,omitempty"`
	AuditTime          *time.Time      `json:"audit_time,omitempty"`
	AuditRemark        *string         `gorm:"type:varchar(255)" json:"audit_remark,omitempty"`
	PaymentRequestedAt *time.Time      `json:"payment_requested_at,omitempty"`
	PaymentNo          *string         `gorm:"type:varchar(64)" json:"payment_no,omitempty"`
	FailReason         *string         `gorm:"type:varchar(255)" json:"fail_reason,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Withdrawal) TableName() string {
	return "withdrawals"
}

// WithdrawMethod 提现方式
const (
	WithdrawMethodWechat = "wechat" // 微信零钱
)

// WithdrawalStatus 提现状态
const (
	WithdrawalStatusPending  = "PENDING"  // 待审核
	WithdrawalStatusApproved = "APPROVED" // 已打款
	WithdrawalStatusRejected = "REJECTED" // 已驳回
	WithdrawalStatusFailed   = "FAILED"   // 打款失败，资金保持冻结
)

// AuditAction 审核动作
const (
	AuditActionApprove = "APPROVE"
	AuditActionReject  = "REJECT"
)
