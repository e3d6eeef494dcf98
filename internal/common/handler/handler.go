// Package handler 提供 HTTP Handler 共用的认证、参数解析与错误响应
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/response"
	"github.com/dumeirei/referral-settlement/internal/common/utils"
	"github.com/dumeirei/referral-settlement/internal/middleware"
)

// 基础设施类错误需要记录原始错误，业务拒绝只返回错误码
var infraErrors = []*errors.AppError{
	errors.ErrDatabaseError,
	errors.ErrCacheError,
	errors.ErrQueueError,
	errors.ErrInternalError,
	errors.ErrExternalService,
}

// HandleError 写出错误响应。err 为 nil 时返回 false；否则返回 true，调用方应直接 return。
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	_ = c.Error(err)

	if !errors.IsAppError(err) {
		logError(c, "Unhandled error", err)
		response.InternalError(c, "")
		return true
	}

	appErr := errors.GetAppError(err)
	for _, infra := range infraErrors {
		if appErr.Is(infra) {
			logError(c, "Request failed", err)
			break
		}
	}
	response.Error(c, appErr.Code, appErr.Message)
	return true
}

func logError(c *gin.Context, msg string, err error) {
	logger.Error(msg,
		logger.RequestID(middleware.GetRequestID(c)),
		logger.Method(c.Request.Method),
		logger.Path(c.FullPath()),
		zap.Error(err),
	)
}

// MustSucceed 有错误时写出错误响应，否则写出 data
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedPage 分页版本的 MustSucceed
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, p utils.Pagination) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, total, p.Page, p.PageSize)
}

// RequireUserID 获取当前会员 ID，未登录时写出 401
func RequireUserID(c *gin.Context) (int64, bool) {
	return requireID(c, "请先登录")
}

// RequireAdminID 获取当前管理员 ID
func RequireAdminID(c *gin.Context) (int64, bool) {
	return requireID(c, "请先登录管理后台")
}

func requireID(c *gin.Context, msg string) (int64, bool) {
	id := middleware.GetUserID(c)
	if id <= 0 {
		response.Unauthorized(c, msg)
		return 0, false
	}
	return id, true
}

// ParseID 解析路径参数 id 为正整数
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// BindPagination 从 query 解析分页参数
func BindPagination(c *gin.Context) utils.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return utils.NewPagination(page, size)
}

// RequireUserAndParseID 会员认证后解析路径 ID
func RequireUserAndParseID(c *gin.Context, resourceName string) (userID, resourceID int64, ok bool) {
	if userID, ok = RequireUserID(c); !ok {
		return 0, 0, false
	}
	if resourceID, ok = ParseID(c, resourceName); !ok {
		return 0, 0, false
	}
	return userID, resourceID, true
}
