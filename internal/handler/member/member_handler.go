// Package member 提供会员端钱包、佣金与提现接口
package member

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dumeirei/referral-settlement/internal/common/handler"
	"github.com/dumeirei/referral-settlement/internal/common/response"
	"github.com/dumeirei/referral-settlement/internal/middleware"
	"github.com/dumeirei/referral-settlement/internal/service/distribution"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
)

// Handler 会员端处理器
type Handler struct {
	ledger        *wallet.Ledger
	commissionSvc *distribution.CommissionService
	withdrawSvc   *distribution.WithdrawService
}

// NewHandler 创建会员端处理器
func NewHandler(
	ledger *wallet.Ledger,
	commissionSvc *distribution.CommissionService,
	withdrawSvc *distribution.WithdrawService,
) *Handler {
	return &Handler{
		ledger:        ledger,
		commissionSvc: commissionSvc,
		withdrawSvc:   withdrawSvc,
	}
}

// RegisterRoutes 注册会员端路由，调用方负责挂载会员认证中间件。
// applyMiddleware 只作用于提现申请，如限流。
func (h *Handler) RegisterRoutes(r gin.IRouter, applyMiddleware ...gin.HandlerFunc) {
	r.GET("/wallet", h.GetWallet)
	r.GET("/wallet/transactions", h.ListTransactions)
	r.POST("/withdrawals", append(applyMiddleware, h.ApplyWithdrawal)...)
	r.GET("/withdrawals", h.ListWithdrawals)
	r.GET("/orders/:id/commissions", h.ListOrderCommissions)
	r.GET("/commissions", h.ListCommissions)
}

// GetWallet 获取钱包快照
func (h *Handler) GetWallet(c *gin.Context) {
	memberID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	info, err := h.ledger.Snapshot(c.Request.Context(), memberID)
	handler.MustSucceed(c, err, info)
}

// ListTransactions 钱包流水
func (h *Handler) ListTransactions(c *gin.Context) {
	memberID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.ledger.ListTransactions(c.Request.Context(), memberID, p.Offset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p)
}

// ApplyWithdrawalRequest 提现申请请求
type ApplyWithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" binding:"required"`
	AccountInfo string          `json:"account_info" binding:"max=128"`
}

// ApplyWithdrawal 申请提现
func (h *Handler) ApplyWithdrawal(c *gin.Context) {
	memberID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req ApplyWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	withdrawal, err := h.withdrawSvc.Apply(c.Request.Context(), &distribution.ApplyRequest{
		MemberID:    memberID,
		TenantID:    middleware.GetTenantID(c),
		Amount:      req.Amount,
		Method:      req.Method,
		AccountInfo: req.AccountInfo,
	})
	handler.MustSucceed(c, err, withdrawal)
}

// ListWithdrawals 我的提现记录
func (h *Handler) ListWithdrawals(c *gin.Context) {
	memberID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.withdrawSvc.List(c.Request.Context(), memberID, p.Offset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p)
}

// ListOrderCommissions 订单佣金明细
func (h *Handler) ListOrderCommissions(c *gin.Context) {
	memberID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	list, err := h.commissionSvc.ListByOrderForMember(c.Request.Context(), orderID, memberID)
	handler.MustSucceed(c, err, list)
}

// ListCommissions 我的佣金，可按状态过滤
func (h *Handler) ListCommissions(c *gin.Context) {
	memberID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.commissionSvc.ListByMember(c.Request.Context(), memberID, c.Query("status"), p.Offset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p)
}
