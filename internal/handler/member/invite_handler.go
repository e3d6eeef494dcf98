package member

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/common/handler"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/qrcode"
	"github.com/dumeirei/referral-settlement/internal/common/response"
	"github.com/dumeirei/referral-settlement/internal/middleware"
)

// InviteHandler 推广链接与二维码
type InviteHandler struct {
	qr *qrcode.Generator
}

// NewInviteHandler 创建推广处理器
func NewInviteHandler(qr *qrcode.Generator) *InviteHandler {
	return &InviteHandler{qr: qr}
}

// InviteInfo 推广信息
type InviteInfo struct {
	InviteURL string `json:"invite_url"`
	QRCode    string `json:"qrcode"` // data URL
}

// RegisterRoutes 注册推广路由
func (h *InviteHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/invite", h.GetInvite)
	r.GET("/invite/qrcode.png", h.GetQRCode)
}

// GetInvite 获取推广链接
func (h *InviteHandler) GetInvite(c *gin.Context) {
	memberID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	tenantID := middleware.GetTenantID(c)

	dataURL, err := h.qr.DataURL(memberID, tenantID)
	if err != nil {
		logger.Error("Failed to generate invite qrcode", logger.MemberID(memberID), zap.Error(err))
		response.InternalError(c, "生成推广二维码失败")
		return
	}

	response.Success(c, &InviteInfo{
		InviteURL: h.qr.InviteURL(memberID, tenantID),
		QRCode:    dataURL,
	})
}

// GetQRCode 推广二维码图片
func (h *InviteHandler) GetQRCode(c *gin.Context) {
	memberID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	data, err := h.qr.PNG(memberID, middleware.GetTenantID(c))
	if err != nil {
		logger.Error("Failed to generate invite qrcode", logger.MemberID(memberID), zap.Error(err))
		response.InternalError(c, "生成推广二维码失败")
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", data)
}
