package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/referral-settlement/internal/common/jwt"
	"github.com/dumeirei/referral-settlement/internal/common/response"
)

// 上下文键
const (
	ContextKeyUserID   = "user_id"
	ContextKeyTenantID = "tenant_id"
)

// UserAuth 会员令牌认证
func UserAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return authenticate(jwtManager, jwt.UserTypeUser)
}

// AdminAuth 管理端令牌认证
func AdminAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return authenticate(jwtManager, jwt.UserTypeAdmin)
}

// authenticate 校验 Bearer 令牌并要求用户类型一致，会员令牌不能访问管理端，反之亦然
func authenticate(jwtManager *jwt.Manager, userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "请先登录")
			return
		}

		claims, err := jwtManager.ParseToken(token)
		if err != nil {
			msg := "无效的令牌"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "登录已过期，请重新登录"
			}
			response.Unauthorized(c, msg)
			return
		}

		if claims.UserType != userType {
			response.Forbidden(c, "无权访问")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyTenantID, claims.TenantID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserID 当前会员或管理员 ID，未认证时为 0
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(ContextKeyUserID)
}

// GetTenantID 令牌所属租户
func GetTenantID(c *gin.Context) int64 {
	return c.GetInt64(ContextKeyTenantID)
}

