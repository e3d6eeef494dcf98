// Package distribution 分销服务：推荐关系、佣金计算与取消、提现申请
package distribution

import (
	"github.com/shopspring/decimal"

	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/models"
)

// 默认分销参数，配置缺失时使用
var (
	DefaultLevel1Rate      = decimal.RequireFromString("0.10")
	DefaultLevel2Rate      = decimal.RequireFromString("0.05")
	DefaultCrossTenantRate = decimal.RequireFromString("0.5")
	DefaultCrossMaxDaily   = decimal.NewFromInt(500)
)

const (
	DefaultSettleDays       = 7
	DefaultMaxReferralDepth = 10
)

// Rules 一次计算使用的分销参数
type Rules struct {
	Level1Rate        decimal.Decimal
	Level2Rate        decimal.Decimal
	EnableCrossTenant bool
	CrossTenantRate   decimal.Decimal
	CrossMaxDaily     decimal.Decimal
}

// DefaultRules 内置默认参数
func DefaultRules() Rules {
	return Rules{
		Level1Rate:      DefaultLevel1Rate,
		Level2Rate:      DefaultLevel2Rate,
		CrossTenantRate: DefaultCrossTenantRate,
		CrossMaxDaily:   DefaultCrossMaxDaily,
	}
}

// RulesFromConfig 从全局配置构造默认参数
func RulesFromConfig(cfg *config.DistributionConfig) Rules {
	if cfg == nil {
		return DefaultRules()
	}
	return Rules{
		Level1Rate:        decimal.NewFromFloat(cfg.Level1Rate),
		Level2Rate:        decimal.NewFromFloat(cfg.Level2Rate),
		EnableCrossTenant: cfg.EnableCrossTenant,
		CrossTenantRate:   decimal.NewFromFloat(cfg.CrossTenantRate),
		CrossMaxDaily:     decimal.NewFromFloat(cfg.CrossMaxDaily),
	}
}

// forTenant 租户有配置时整体覆盖默认参数
func (r Rules) forTenant(tenantCfg *models.DistributionConfig) Rules {
	if tenantCfg == nil {
		return r
	}
	return Rules{
		Level1Rate:        tenantCfg.Level1Rate,
		Level2Rate:        tenantCfg.Level2Rate,
		EnableCrossTenant: tenantCfg.EnableCrossTenant,
		CrossTenantRate:   tenantCfg.CrossTenantRate,
		CrossMaxDaily:     tenantCfg.CrossMaxDaily,
	}
}

// multiplier 跨租户时的比例系数
func (r Rules) multiplier(cross bool) decimal.Decimal {
	if cross {
		return r.CrossTenantRate
	}
	return decimal.NewFromInt(1)
}

// ComputeBase 计算订单佣金基数：RATIO 按明细金额×比例，FIXED 按比例值×数量，其余不计
func ComputeBase(items []models.OrderItem, skuRules map[int64]*models.SkuDistribution) decimal.Decimal {
	base := decimal.Zero
	for _, item := range items {
		rule, ok := skuRules[item.SkuID]
		if !ok {
			continue
		}
		switch rule.Mode {
		case models.DistributionModeRatio:
			base = base.Add(item.TotalAmount.Mul(rule.Rate))
		case models.DistributionModeFixed:
			base = base.Add(rule.Rate.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return base
}
