// Package response JSON 响应封装
//
// 业务错误以 HTTP 200 返回，错误码放在 body.code；
// 协议层错误（参数、鉴权、限流）使用对应 HTTP 状态码，body.code 与状态码一致。
package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CodeSuccess 成功码
const CodeSuccess = 0

// Response 响应体
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeSuccess, Message: "success", Data: data})
}

func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, PageData{List: list, Total: total, Page: page, PageSize: pageSize})
}

// Error 业务错误
func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{Code: code, Message: message})
}

// Status 以 HTTP 状态码中止请求，message 为空时使用状态码文本
func Status(c *gin.Context, status int, message string) {
	if message == "" {
		message = strings.ToLower(http.StatusText(status))
	}
	c.AbortWithStatusJSON(status, Response{Code: status, Message: message})
}

func BadRequest(c *gin.Context, message string) { Status(c, http.StatusBadRequest, message) }
func Unauthorized(c *gin.Context, message string) { Status(c, http.StatusUnauthorized, message) }
func Forbidden(c *gin.Context, message string) { Status(c, http.StatusForbidden, message) }
func InternalError(c *gin.Context, message string) { Status(c, http.StatusInternalServerError, message) }
func TooManyRequests(c *gin.Context, message string) { Status(c, http.StatusTooManyRequests, message) }
