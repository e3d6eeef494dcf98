package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/bootstrap"
	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/common/jwt"
	"github.com/dumeirei/referral-settlement/internal/common/metrics"
	"github.com/dumeirei/referral-settlement/internal/common/mq"
	"github.com/dumeirei/referral-settlement/internal/common/qrcode"
	adminHandler "github.com/dumeirei/referral-settlement/internal/handler/admin"
	memberHandler "github.com/dumeirei/referral-settlement/internal/handler/member"
	"github.com/dumeirei/referral-settlement/internal/middleware"
	"github.com/dumeirei/referral-settlement/internal/queue"
)

// setupRouter 设置路由
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	services *bootstrap.Services,
	mqClient *mq.Client,
) {
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenDuration(),
		Issuer:           cfg.JWT.Issuer,
	})

	memberH := memberHandler.NewHandler(services.Ledger, services.Commission, services.Withdraw)
	withdrawalH := adminHandler.NewWithdrawalHandler(services.Audit)

	var inviteH *memberHandler.InviteHandler
	if base := cfg.Business.Distribution.InviteBaseURL; base != "" {
		qr, err := qrcode.NewGenerator(base)
		if err != nil {
			logger.Fatal("Invalid invite base url", zap.Error(err))
		}
		inviteH = memberHandler.NewInviteHandler(qr)
	}

	var publisher adminHandler.OrderEventPublisher
	if mqClient != nil {
		publisher = queue.NewProducer(mqClient, cfg.RabbitMQ.Exchange)
	}
	memberAdminH := adminHandler.NewMemberHandler(services.Resolver, publisher)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.BodyLimit(middleware.DefaultMaxBodyBytes))
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	probePaths := []string{"/health", "/ping", "/ready", metricsPath}

	r.Use(middleware.Logging(logger, probePaths...))
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(cfg.Tracing.ServiceName, probePaths...))
	}
	if cfg.Metrics.Enabled {
		r.Use(metrics.GetMetrics().Middleware())
		r.GET(metricsPath, metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(readinessChecks(db, redisClient, mqClient)...))

	v1 := r.Group("/api/v1")
	{
		// 会员接口
		member := v1.Group("", middleware.UserAuth(jwtManager), middleware.NoStore())
		var applyMiddleware []gin.HandlerFunc
		if cfg.RateLimit.Enabled && cfg.RateLimit.WithdrawPerMin > 0 {
			applyMiddleware = append(applyMiddleware,
				middleware.MemberRateLimit(redisClient, "withdraw", cfg.RateLimit.WithdrawPerMin, time.Minute))
		}
		memberH.RegisterRoutes(member, applyMiddleware...)
		if inviteH != nil {
			inviteH.RegisterRoutes(member)
		}

		// 管理端接口
		admin := v1.Group("/admin", middleware.AdminAuth(jwtManager), middleware.NoStore())
		withdrawalH.RegisterRoutes(admin)
		memberAdminH.RegisterRoutes(admin)
	}
}
