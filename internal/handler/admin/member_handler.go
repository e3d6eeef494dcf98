package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/handler"
	"github.com/dumeirei/referral-settlement/internal/common/response"
	"github.com/dumeirei/referral-settlement/internal/middleware"
	"github.com/dumeirei/referral-settlement/internal/service/distribution"
)

// OrderEventPublisher 投递订单事件
type OrderEventPublisher interface {
	PublishOrderPaid(ctx context.Context, orderID, tenantID int64) error
}

// MemberHandler 会员关系与佣金运维处理器
type MemberHandler struct {
	resolver  *distribution.ReferralResolver
	publisher OrderEventPublisher
}

// NewMemberHandler 创建处理器，publisher 为空时不提供重算接口
func NewMemberHandler(resolver *distribution.ReferralResolver, publisher OrderEventPublisher) *MemberHandler {
	return &MemberHandler{resolver: resolver, publisher: publisher}
}

// RegisterRoutes 注册路由
func (h *MemberHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/members/:id/bind", h.BindParent)
	if h.publisher != nil {
		r.POST("/orders/:id/commissions/recalculate", h.Recalculate)
	}
}

// BindParentRequest 绑定上级请求
type BindParentRequest struct {
	ParentID int64 `json:"parent_id" binding:"required,gt=0"`
}

// BindParent 绑定推荐上级，拒绝自绑与成环
func (h *MemberHandler) BindParent(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	memberID, ok := handler.ParseID(c, "会员")
	if !ok {
		return
	}

	var req BindParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	err := h.resolver.Bind(c.Request.Context(), memberID, req.ParentID)
	handler.MustSucceed(c, err, nil)
}

// Recalculate 重新投递订单支付事件。计算幂等，已生成的佣金不会重复。
func (h *MemberHandler) Recalculate(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	orderID, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}

	if err := h.publisher.PublishOrderPaid(c.Request.Context(), orderID, middleware.GetTenantID(c)); err != nil {
		handler.HandleError(c, errors.ErrQueueError.WithError(err))
		return
	}
	response.Success(c, nil)
}
