// Package admin 管理端 HTTP Handler
package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/referral-settlement/internal/common/handler"
	"github.com/dumeirei/referral-settlement/internal/common/response"
	"github.com/dumeirei/referral-settlement/internal/service/finance"
)

// WithdrawalHandler 提现审核处理器
type WithdrawalHandler struct {
	auditService *finance.WithdrawalAuditService
}

// NewWithdrawalHandler 创建提现审核处理器
func NewWithdrawalHandler(auditSvc *finance.WithdrawalAuditService) *WithdrawalHandler {
	return &WithdrawalHandler{auditService: auditSvc}
}

// RegisterRoutes 注册路由
func (h *WithdrawalHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/withdrawals", h.List)
	r.POST("/withdrawals/:id/audit", h.Audit)
}

// AuditRequest 审核请求
type AuditRequest struct {
	Action string `json:"action" binding:"required,oneof=APPROVE REJECT"`
	Remark string `json:"remark" binding:"max=255"`
}

// Audit 审核提现
func (h *WithdrawalHandler) Audit(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "提现")
	if !ok {
		return
	}

	var req AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	withdrawal, err := h.auditService.Audit(c.Request.Context(), &finance.AuditRequest{
		WithdrawalID: id,
		Action:       req.Action,
		AuditorID:    adminID,
		Remark:       req.Remark,
	})
	handler.MustSucceed(c, err, withdrawal)
}

// List 提现列表
func (h *WithdrawalHandler) List(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.auditService.List(c.Request.Context(), c.Query("status"), p.Offset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p)
}
