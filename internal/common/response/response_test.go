// Package response 统一响应格式单元测试
package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestSuccess(t *testing.T) {
	w, resp := perform(func(c *gin.Context) {
		Success(c, gin.H{"balance": "10.00"})
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.Equal(t, map[string]interface{}{"balance": "10.00"}, resp.Data)
}

func TestSuccessPage(t *testing.T) {
	w, _ := perform(func(c *gin.Context) {
		SuccessPage(c, []int{1, 2}, 12, 2, 2)
	})
	var body struct {
		Data PageData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(12), body.Data.Total)
	assert.Equal(t, 2, body.Data.Page)
	assert.Equal(t, 2, body.Data.PageSize)
}

func TestError(t *testing.T) {
	w, resp := perform(func(c *gin.Context) {
		Error(c, 3001, "余额不足")
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3001, resp.Code)
	assert.Equal(t, "余额不足", resp.Message)
}

func TestHTTPStatusResponses(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(c *gin.Context, msg string)
		status  int
		message string
	}{
		{"BadRequest", BadRequest, http.StatusBadRequest, "bad request"},
		{"Unauthorized", Unauthorized, http.StatusUnauthorized, "unauthorized"},
		{"Forbidden", Forbidden, http.StatusForbidden, "forbidden"},
		{"InternalError", InternalError, http.StatusInternalServerError, "internal server error"},
		{"TooManyRequests", TooManyRequests, http.StatusTooManyRequests, "too many requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := perform(func(c *gin.Context) { tt.fn(c, "") })
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}

	t.Run("自定义消息", func(t *testing.T) {
		_, resp := perform(func(c *gin.Context) { BadRequest(c, "无效的提现ID") })
		assert.Equal(t, "无效的提现ID", resp.Message)
	})

	t.Run("中止后续处理", func(t *testing.T) {
		w, _ := perform(func(c *gin.Context) {
			Status(c, http.StatusRequestEntityTooLarge, "")
			assert.True(t, c.IsAborted())
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}
