package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/models"
)

// WithdrawalRepository 提现仓储，状态变更均以 PENDING 为前置条件
type WithdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository 创建提现仓储
func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// WithTx 返回绑定到事务的仓储副本
func (r *WithdrawalRepository) WithTx(tx *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

// Create 创建提现记录
func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

// GetByID 根据 ID 获取提现记录
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := r.db.WithContext(ctx).First(&withdrawal, id).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// ListByMember 分页获取会员的提现记录
func (r *WithdrawalRepository) ListByMember(ctx context.Context, memberID int64, offset, limit int) ([]*models.Withdrawal, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("member_id = ?", memberID), offset, limit)
}

// List 分页获取提现记录，status 为空时不过滤
func (r *WithdrawalRepository) List(ctx context.Context, status string, offset, limit int) ([]*models.Withdrawal, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Withdrawal{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return r.list(ctx, query, offset, limit)
}

func (r *WithdrawalRepository) list(_ context.Context, query *gorm.DB, offset, limit int) ([]*models.Withdrawal, int64, error) {
	var list []*models.Withdrawal
	var total int64

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Scopes(database.Latest(offset, limit)).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ClaimForPayment 占用待审核提现以发起打款，同一笔提现只能被占用一次
func (r *WithdrawalRepository) ClaimForPayment(ctx context.Context, id, auditorID int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ? AND payment_requested_at IS NULL", id, models.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"payment_requested_at": now,
			"audit_by":             auditorID,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkApproved 打款成功
func (r *WithdrawalRepository) MarkApproved(ctx context.Context, id int64, paymentNo string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":     models.WithdrawalStatusApproved,
			"payment_no": paymentNo,
			"audit_time": now,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkFailed 打款失败，资金保持冻结
func (r *WithdrawalRepository) MarkFailed(ctx context.Context, id int64, reason string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":      models.WithdrawalStatusFailed,
			"fail_reason": reason,
			"audit_time":  now,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkRejected 驳回尚未发起打款的提现
func (r *WithdrawalRepository) MarkRejected(ctx context.Context, id, auditorID int64, remark string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ? AND payment_requested_at IS NULL", id, models.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":       models.WithdrawalStatusRejected,
			"audit_by":     auditorID,
			"audit_time":   now,
			"audit_remark": remark,
		})
	return result.RowsAffected > 0, result.Error
}

// ListStaleClaimed 获取已发起打款但在 before 之前仍未落定的提现
func (r *WithdrawalRepository) ListStaleClaimed(ctx context.Context, before time.Time, limit int) ([]*models.Withdrawal, error) {
	var list []*models.Withdrawal
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_requested_at IS NOT NULL AND payment_requested_at <= ?", models.WithdrawalStatusPending, before).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
