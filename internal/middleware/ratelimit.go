package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/common/cache"
	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/response"
)

// KeyFunc 返回限流键
type KeyFunc func(c *gin.Context) string

// RateLimit 固定窗口限流。计数与过期在同一事务管道内设置，
// Redis 不可用时放行并记录告警
func RateLimit(client *redis.Client, limit int, window time.Duration, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		ctx := c.Request.Context()

		var incr *redis.IntCmd
		var ttl *redis.DurationCmd
		_, err := client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			p.ExpireNX(ctx, key, window)
			ttl = p.TTL(ctx, key)
			return nil
		})
		if err != nil {
			logger.Warn("Rate limiter unavailable, request allowed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		remaining := limit - int(incr.Val())
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
		if remaining < 0 {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Val().Seconds())))
			response.TooManyRequests(c, errors.ErrRateLimitExceed.Message)
			return
		}
		c.Next()
	}
}

// MemberRateLimit 按会员与动作限流，需挂在 UserAuth 之后；未登录请求按 IP 计数
func MemberRateLimit(client *redis.Client, action string, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(client, limit, window, func(c *gin.Context) string {
		if userID := GetUserID(c); userID > 0 {
			return cache.BuildKey(cache.KeyPrefixRateLimit, action, strconv.FormatInt(userID, 10))
		}
		return cache.BuildKey(cache.KeyPrefixRateLimit, action, "ip", c.ClientIP())
	})
}
