package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/utils"
	"github.com/dumeirei/referral-settlement/internal/models"
)

func TestMemberRepository_ParentPointers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMemberRepository(db)
	ctx := context.Background()

	top := &models.Member{TenantID: 1, LevelID: models.MemberLevelC2}
	require.NoError(t, repo.Create(ctx, top))
	mid := &models.Member{TenantID: 1, LevelID: models.MemberLevelC1, ParentID: &top.ID}
	require.NoError(t, repo.Create(ctx, mid))

	parent, err := repo.GetParentID(ctx, mid.ID)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, top.ID, *parent)

	parent, err = repo.GetParentID(ctx, top.ID)
	require.NoError(t, err)
	assert.Nil(t, parent)

	_, err = repo.GetParentID(ctx, 999)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	require.NoError(t, repo.UpdateParent(ctx, top.ID, utils.Ptr[int64](50), utils.Ptr[int64](51)))
	found, err := repo.GetByID(ctx, top.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), *found.ParentID)
	assert.Equal(t, int64(51), *found.IndirectParentID)
}

func TestDistributionRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDistributionRepository(db)
	ctx := context.Background()

	t.Run("配置不存在返回 nil", func(t *testing.T) {
		cfg, err := repo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("配置覆盖写入", func(t *testing.T) {
		require.NoError(t, repo.SaveConfig(ctx, &models.DistributionConfig{
			TenantID: 1, Level1Rate: decimal.RequireFromString("0.1"), Level2Rate: decimal.RequireFromString("0.05"),
			CrossTenantRate: decimal.RequireFromString("0.5"), CrossMaxDaily: decimal.NewFromInt(500),
		}))
		require.NoError(t, repo.SaveConfig(ctx, &models.DistributionConfig{
			TenantID: 1, Level1Rate: decimal.RequireFromString("0.2"), Level2Rate: decimal.RequireFromString("0.05"),
			EnableCrossTenant: true, CrossTenantRate: decimal.RequireFromString("0.5"), CrossMaxDaily: decimal.NewFromInt(500),
		}))

		cfg, err := repo.GetConfig(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.True(t, cfg.Level1Rate.Equal(decimal.RequireFromString("0.2")))
		assert.True(t, cfg.EnableCrossTenant)
	})

	t.Run("SKU 规则按 ID 索引", func(t *testing.T) {
		require.NoError(t, db.Create(&models.SkuDistribution{SkuID: 7, Mode: models.DistributionModeRatio, Rate: decimal.RequireFromString("0.5")}).Error)
		rules, err := repo.GetSkuRules(ctx, []int64{7, 8})
		require.NoError(t, err)
		assert.Len(t, rules, 1)
		assert.Equal(t, models.DistributionModeRatio, rules[7].Mode)

		empty, err := repo.GetSkuRules(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("黑名单", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Blacklist{TenantID: 1, MemberID: 3}).Error)
		hit, err := repo.IsBlacklisted(ctx, 1, 3)
		require.NoError(t, err)
		assert.True(t, hit)

		hit, err = repo.IsBlacklisted(ctx, 2, 3)
		require.NoError(t, err)
		assert.False(t, hit)
	})
}
