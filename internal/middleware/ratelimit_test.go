package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberRateLimit(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.POST("/withdraw", func(c *gin.Context) {
		c.Set(ContextKeyUserID, int64(42))
		c.Next()
	}, MemberRateLimit(client, "withdraw", 2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/withdraw", nil))
		return w
	}

	t.Run("窗口内放行", func(t *testing.T) {
		w := do()
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, http.StatusOK, do().Code)
	})

	t.Run("超限返回429", func(t *testing.T) {
		w := do()
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
		assert.Equal(t, time.Minute, s.TTL("ratelimit:withdraw:42"))
	})

	t.Run("窗口过期后恢复", func(t *testing.T) {
		s.FastForward(time.Minute + time.Second)
		assert.Equal(t, http.StatusOK, do().Code)
	})

	t.Run("Redis不可用时放行", func(t *testing.T) {
		s.Close()
		assert.Equal(t, http.StatusOK, do().Code)
	})
}

func TestMemberRateLimit_KeyByIP(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.GET("/x", MemberRateLimit(client, "invite", 5, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.8:1234"
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, s.Exists("ratelimit:invite:ip:10.0.0.8"))
}
