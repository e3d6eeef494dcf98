package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/common/cache"
	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/service/finance"
)

// 任务锁名
const (
	LockCommissionSettle    = "commission_settle"
	LockWithdrawalReconcile = "withdrawal_reconcile"
)

// TaskHandler 任务处理器
type TaskHandler struct {
	redis         *redis.Client
	settlementSvc *finance.SettlementService
	auditSvc      *finance.WithdrawalAuditService
	cfg           *config.SettlementConfig
	now           func() time.Time
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(
	redisClient *redis.Client,
	settlementSvc *finance.SettlementService,
	auditSvc *finance.WithdrawalAuditService,
	cfg *config.SettlementConfig,
) *TaskHandler {
	return &TaskHandler{
		redis:         redisClient,
		settlementSvc: settlementSvc,
		auditSvc:      auditSvc,
		cfg:           cfg,
		now:           time.Now,
	}
}

// SettleCommissions 结算到期佣金，集群内同一时刻只有一个实例执行
func (h *TaskHandler) SettleCommissions(ctx context.Context) error {
	return h.withLock(ctx, LockCommissionSettle, func(ctx context.Context) error {
		_, err := h.settlementSvc.SettleDue(ctx)
		return err
	})
}

// ReconcileWithdrawals 对账悬挂的提现打款
func (h *TaskHandler) ReconcileWithdrawals(ctx context.Context) error {
	return h.withLock(ctx, LockWithdrawalReconcile, func(ctx context.Context) error {
		_, err := h.auditSvc.Reconcile(ctx, h.now().Add(-h.cfg.ReconcileStale()))
		return err
	})
}

// withLock 获取锁后执行，锁被占用时跳过本轮
func (h *TaskHandler) withLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	lock := cache.NewLock(h.redis, name, h.cfg.LockTTL())

	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		logger.Debug("Task lock held by another instance, skipping", zap.String("lock", lock.Key()))
		return nil
	}
	defer func() {
		// 任务超时后 ctx 可能已取消，释放使用独立上下文
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			logger.Warn("Failed to release task lock", zap.String("lock", lock.Key()), zap.Error(err))
		}
	}()

	return fn(ctx)
}

// Register 注册结算与对账任务
func (h *TaskHandler) Register(s *Scheduler) {
	s.AddTask("commission_settle", h.cfg.Interval(), h.SettleCommissions)
	if h.auditSvc != nil {
		s.AddTask("withdrawal_reconcile", h.cfg.ReconcileInterval(), h.ReconcileWithdrawals)
	}
}
