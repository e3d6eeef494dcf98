// Package main 是 HTTP 网关入口
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/mq"
)

const readyCheckTimeout = 3 * time.Second

// readinessCheck 单项依赖检查
type readinessCheck struct {
	name string
	// optional 为 true 时失败只报告不影响就绪状态
	optional bool
	probe    func(ctx context.Context) error
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// healthHandler 存活检查
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Unix(),
	})
}

// pingHandler Ping 检查
func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// readinessChecks 网关依赖：数据库和 Redis 必需，RabbitMQ 只影响佣金重算
func readinessChecks(db *gorm.DB, redisClient *redis.Client, mqClient *mq.Client) []readinessCheck {
	checks := []readinessCheck{
		{name: "database", probe: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		{name: "redis", probe: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	}
	if mqClient != nil {
		checks = append(checks, readinessCheck{name: "rabbitmq", optional: true, probe: func(context.Context) error {
			if mqClient.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}})
	}
	return checks
}

// readyHandler 就绪检查
func readyHandler(checks ...readinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyCheckTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, check := range checks {
			if err := check.probe(ctx); err != nil {
				results[check.name] = "error: " + err.Error()
				if !check.optional {
					ready = false
				}
				logger.Warn("Readiness check failed", zap.String("check", check.name), zap.Error(err))
				continue
			}
			results[check.name] = "ok"
		}

		status, text := http.StatusOK, "ready"
		if !ready {
			status, text = http.StatusServiceUnavailable, "not ready"
		}
		c.JSON(status, HealthResponse{
			Status:    text,
			Timestamp: time.Now().Unix(),
			Checks:    results,
		})
	}
}
