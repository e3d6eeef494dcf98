package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/cache"
	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/common/idgen"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/metrics"
	"github.com/dumeirei/referral-settlement/internal/common/tracing"
)

const closeTimeout = 5 * time.Second

// Infra 进程级基础设施
type Infra struct {
	DB     *gorm.DB
	Redis  *redis.Client
	tracer *tracing.Provider
}

// OpenInfra 依次初始化 ID 生成器、数据库、Redis、指标与追踪，
// 任一步失败时关闭已打开的连接
func OpenInfra(cfg *config.Config, component string) (*Infra, error) {
	if err := idgen.Init(cfg.Snowflake.MachineID, cfg.Snowflake.DataCenterID); err != nil {
		return nil, fmt.Errorf("init id generator: %w", err)
	}

	db, err := database.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	rdb, err := cache.Init(&cfg.Redis)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("init redis: %w", err)
	}

	metrics.Init(cfg.Metrics.Namespace)
	return &Infra{DB: db, Redis: rdb, tracer: InitTracing(cfg, component)}, nil
}

// Close 刷新追踪数据并关闭连接，错误只记录
func (i *Infra) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := i.tracer.Shutdown(ctx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}
	if err := i.Redis.Close(); err != nil {
		logger.Warn("Failed to close redis", zap.Error(err))
	}
	if err := database.Close(i.DB); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}
