// Package cache 提供 Redis 客户端、分布式锁与键命名
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/referral-settlement/internal/common/config"
)

// 键前缀，各段以冒号连接
const (
	KeyPrefixRateLimit = "ratelimit"
	KeyPrefixLock      = "lock"
)

const defaultPingTimeout = 5 * time.Second

// Init 创建 Redis 客户端并确认连通，失败时关闭客户端
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	timeout := defaultPingTimeout
	if cfg.DialTimeout > 0 {
		timeout = seconds(cfg.DialTimeout)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// Options 配置转换为客户端参数，未配置的项使用 go-redis 默认值
func Options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  seconds(cfg.DialTimeout),
		ReadTimeout:  seconds(cfg.ReadTimeout),
		WriteTimeout: seconds(cfg.WriteTimeout),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// BuildKey 以冒号拼接键，如 lock:commission_settle
func BuildKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), ":")
}
