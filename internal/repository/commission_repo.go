// Package repository GORM 数据访问层，写操作通过 WithTx 绑定到调用方事务
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/models"
)

// CommissionRepository 佣金仓储
type CommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// WithTx 返回绑定到事务的仓储副本
func (r *CommissionRepository) WithTx(tx *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: tx}
}

// CreateIfAbsent 按 (order_id, beneficiary_id, level) 幂等插入，已存在时不做任何修改
func (r *CommissionRepository) CreateIfAbsent(ctx context.Context, commission *models.Commission) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(commission)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 获取佣金记录
func (r *CommissionRepository) GetByID(ctx context.Context, id int64) (*models.Commission, error) {
	var commission models.Commission
	if err := r.db.WithContext(ctx).First(&commission, id).Error; err != nil {
		return nil, err
	}
	return &commission, nil
}

// GetByOrderID 根据订单 ID 获取佣金记录列表
func (r *CommissionRepository) GetByOrderID(ctx context.Context, orderID int64) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("level ASC, id ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// ListByBeneficiary 分页获取受益人的佣金记录，status 为空时不过滤
func (r *CommissionRepository) ListByBeneficiary(ctx context.Context, beneficiaryID int64, status string, offset, limit int) ([]*models.Commission, int64, error) {
	var commissions []*models.Commission
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Commission{}).Where("beneficiary_id = ?", beneficiaryID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Scopes(database.Latest(offset, limit)).Find(&commissions).Error; err != nil {
		return nil, 0, err
	}

	return commissions, total, nil
}

// ListDueFrozen 按 ID 游标获取已到期的冻结佣金
func (r *CommissionRepository) ListDueFrozen(ctx context.Context, now time.Time, afterID int64, limit int) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.db.WithContext(ctx).
		Where("status = ? AND plan_settle_time <= ? AND id > ?", models.CommissionStatusFrozen, now, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&commissions).Error
	return commissions, err
}

// MarkSettled 冻结 → 已结算，返回是否由本次调用完成状态迁移
func (r *CommissionRepository) MarkSettled(ctx context.Context, id int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, models.CommissionStatusFrozen).
		Updates(map[string]interface{}{
			"status":      models.CommissionStatusSettled,
			"settle_time": now,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkCancelled 从 from 状态迁移到已取消
func (r *CommissionRepository) MarkCancelled(ctx context.Context, id int64, from string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":      models.CommissionStatusCancelled,
			"cancel_time": now,
		})
	return result.RowsAffected > 0, result.Error
}

// SumCrossTenantSince 统计自 since 起受益人在该租户下未取消的跨租户佣金
func (r *CommissionRepository) SumCrossTenantSince(ctx context.Context, tenantID, beneficiaryID int64, since time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("SUM(amount) AS total").
		Where("tenant_id = ? AND beneficiary_id = ? AND is_cross_tenant = ? AND status <> ? AND created_at >= ?",
			tenantID, beneficiaryID, true, models.CommissionStatusCancelled, since).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}

// LockDailyTotal 获取 (租户, 受益人, 日期) 日累计行并加行锁，行不存在时先插入
func (r *CommissionRepository) LockDailyTotal(ctx context.Context, tenantID, beneficiaryID int64, statDate string) (*models.CommissionDailyTotal, error) {
	row := &models.CommissionDailyTotal{
		TenantID:      tenantID,
		BeneficiaryID: beneficiaryID,
		StatDate:      statDate,
		Total:         decimal.Zero,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return nil, err
	}

	var locked models.CommissionDailyTotal
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND beneficiary_id = ? AND stat_date = ?", tenantID, beneficiaryID, statDate).
		First(&locked).Error
	if err != nil {
		return nil, err
	}
	return &locked, nil
}

// UpdateDailyTotal 写回日累计
func (r *CommissionRepository) UpdateDailyTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.CommissionDailyTotal{}).
		Where("id = ?", id).
		Update("total", total).Error
}

// GetDailyTotal 读取日累计，不存在时返回零值
func (r *CommissionRepository) GetDailyTotal(ctx context.Context, tenantID, beneficiaryID int64, statDate string) (decimal.Decimal, error) {
	var row models.CommissionDailyTotal
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND beneficiary_id = ? AND stat_date = ?", tenantID, beneficiaryID, statDate).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
