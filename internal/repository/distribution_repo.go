package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/referral-settlement/internal/models"
)

// DistributionRepository 分销规则仓储：租户配置、SKU 规则、黑名单
type DistributionRepository struct {
	db *gorm.DB
}

// NewDistributionRepository 创建分销规则仓储
func NewDistributionRepository(db *gorm.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

// WithTx 返回绑定到事务的仓储副本
func (r *DistributionRepository) WithTx(tx *gorm.DB) *DistributionRepository {
	return &DistributionRepository{db: tx}
}

// GetConfig 获取租户分销配置，不存在时返回 nil
func (r *DistributionRepository) GetConfig(ctx context.Context, tenantID int64) (*models.DistributionConfig, error) {
	var cfg models.DistributionConfig
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Limit(1).Find(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

// SaveConfig 按租户写入或覆盖分销配置
func (r *DistributionRepository) SaveConfig(ctx context.Context, cfg *models.DistributionConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"level1_rate", "level2_rate", "enable_cross_tenant", "cross_tenant_rate", "cross_max_daily", "updated_at",
		}),
	}).Create(cfg).Error
}

// GetSkuRules 批量获取 SKU 分销规则，按 SKU ID 索引
func (r *DistributionRepository) GetSkuRules(ctx context.Context, skuIDs []int64) (map[int64]*models.SkuDistribution, error) {
	result := make(map[int64]*models.SkuDistribution, len(skuIDs))
	if len(skuIDs) == 0 {
		return result, nil
	}

	var rules []*models.SkuDistribution
	if err := r.db.WithContext(ctx).Where("sku_id IN ?", skuIDs).Find(&rules).Error; err != nil {
		return nil, err
	}
	for _, rule := range rules {
		result[rule.SkuID] = rule
	}
	return result, nil
}

// IsBlacklisted 会员是否在租户分销黑名单中
func (r *DistributionRepository) IsBlacklisted(ctx context.Context, tenantID, memberID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Blacklist{}).
		Where("tenant_id = ? AND member_id = ?", tenantID, memberID).
		Count(&count).Error
	return count > 0, err
}
