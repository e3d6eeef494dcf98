package finance

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/metrics"
	"github.com/dumeirei/referral-settlement/internal/common/tracing"
	"github.com/dumeirei/referral-settlement/internal/common/utils"
	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/internal/repository"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
	"github.com/dumeirei/referral-settlement/pkg/wechatpay"
)

// DefaultReconcileBatchSize 每轮对账最多处理的提现数
const DefaultReconcileBatchSize = 100

// WithdrawalAuditService 提现审核服务
type WithdrawalAuditService struct {
	db             *gorm.DB
	withdrawalRepo *repository.WithdrawalRepository
	memberRepo     *repository.MemberRepository
	ledger         *wallet.Ledger
	payer          wechatpay.Payer
	now            func() time.Time
}

// NewWithdrawalAuditService 创建提现审核服务
func NewWithdrawalAuditService(
	db *gorm.DB,
	withdrawalRepo *repository.WithdrawalRepository,
	memberRepo *repository.MemberRepository,
	ledger *wallet.Ledger,
	payer wechatpay.Payer,
) *WithdrawalAuditService {
	return &WithdrawalAuditService{
		db:             db,
		withdrawalRepo: withdrawalRepo,
		memberRepo:     memberRepo,
		ledger:         ledger,
		payer:          payer,
		now:            time.Now,
	}
}

// AuditRequest 审核请求
type AuditRequest struct {
	WithdrawalID int64
	Action       string
	AuditorID    int64
	Remark       string
}

// Audit 审核入口
func (s *WithdrawalAuditService) Audit(ctx context.Context, req *AuditRequest) (*models.Withdrawal, error) {
	ctx, span := tracing.StartSpan(ctx, "withdrawal.audit",
		tracing.WithdrawalID(req.WithdrawalID),
		tracing.Operation(req.Action),
	)
	defer span.End()

	var (
		w   *models.Withdrawal
		err error
	)
	switch req.Action {
	case models.AuditActionApprove:
		w, err = s.Approve(ctx, req.WithdrawalID, req.AuditorID)
	case models.AuditActionReject:
		w, err = s.Reject(ctx, req.WithdrawalID, req.AuditorID, req.Remark)
	default:
		return nil, errors.ErrInvalidAuditAction
	}

	result := "ok"
	if err != nil {
		result = "error"
		tracing.SetError(ctx, err)
	}
	metrics.GetMetrics().RecordWithdrawalAudit(req.Action, result)
	return w, err
}

// Approve 审核通过并打款。
// 先占用记录再在事务外调用打款，以提现单号作为幂等键；
// 结果不确定（网络错误或处理中）时记录保持 PENDING，由对账任务落定。
func (s *WithdrawalAuditService) Approve(ctx context.Context, id, auditorID int64) (*models.Withdrawal, error) {
	w, err := s.getWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalStatusPending {
		return nil, errors.ErrWithdrawalStatus.WithMessage("只能审核待审核状态的提现申请")
	}
	if w.PaymentRequestedAt != nil {
		return nil, errors.ErrWithdrawProcessing
	}

	member, err := s.memberRepo.GetByID(ctx, w.MemberID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrMemberNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	openID := utils.Deref(member.OpenID)
	if openID == "" {
		return nil, errors.ErrWithdrawMethod.WithMessage("会员未绑定微信，无法打款")
	}

	claimed, err := s.withdrawalRepo.ClaimForPayment(ctx, w.ID, auditorID, s.now())
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if !claimed {
		return nil, s.conflictError(ctx, w.ID)
	}

	result, err := s.payer.TransferToBalance(ctx, &wechatpay.TransferRequest{
		OutBatchNo: w.WithdrawalNo,
		OpenID:     openID,
		Amount:     utils.ToFen(w.Amount),
		Remark:     "佣金提现",
	})
	if err != nil {
		logger.Warn("Payout result unknown, left for reconciliation",
			logger.WithdrawalNo(w.WithdrawalNo),
			logger.Amount(w.Amount),
			zap.Error(err),
		)
		return nil, errors.ErrWithdrawProcessing.WithError(err)
	}

	return s.applyResult(ctx, w, result)
}

// Reject 驳回未发起打款的提现并解冻资金
func (s *WithdrawalAuditService) Reject(ctx context.Context, id, auditorID int64, remark string) (*models.Withdrawal, error) {
	w, err := s.getWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}

	err = database.RunInTx(ctx, s.db, database.DefaultTxAttempts, nil, func(tx *gorm.DB) error {
		ok, err := s.withdrawalRepo.WithTx(tx).MarkRejected(ctx, w.ID, auditorID, remark, s.now())
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return s.conflictErrorTx(ctx, tx, w.ID)
		}

		_, err = s.ledger.UnfreezeTx(ctx, tx, wallet.Change{
			MemberID:  w.MemberID,
			TenantID:  w.TenantID,
			Amount:    w.Amount,
			Type:      models.TxTypeWithdrawUnfreeze,
			RelatedID: &w.ID,
			Remark:    "提现驳回，资金解冻",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Withdrawal rejected",
		logger.WithdrawalNo(w.WithdrawalNo),
		logger.AdminID(auditorID),
		logger.Amount(w.Amount),
	)
	return s.getWithdrawal(ctx, id)
}

// ReconcileReport 对账统计
type ReconcileReport struct {
	Checked  int
	Approved int
	Failed   int
	Pending  int
	Errors   int
}

// Reconcile 查询 staleBefore 之前发起打款但仍未落定的提现，按渠道结果落定
func (s *WithdrawalAuditService) Reconcile(ctx context.Context, staleBefore time.Time) (*ReconcileReport, error) {
	ctx, span := tracing.StartSpan(ctx, "withdrawal.reconcile", tracing.Operation("reconcile"))
	defer span.End()

	list, err := s.withdrawalRepo.ListStaleClaimed(ctx, staleBefore, DefaultReconcileBatchSize)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	report := &ReconcileReport{}
	for _, w := range list {
		report.Checked++

		result, err := s.payer.QueryTransfer(ctx, w.WithdrawalNo)
		if err != nil {
			report.Errors++
			logger.Error("Failed to query payout", logger.WithdrawalNo(w.WithdrawalNo), zap.Error(err))
			continue
		}
		if result.Status == wechatpay.TransferStatusNotFound {
			result.FailReason = "渠道未受理该笔打款"
		}

		final, err := s.applyResult(ctx, w, result)
		switch {
		case err != nil && !stderrors.Is(err, errors.ErrPaymentFailed):
			report.Errors++
			logger.Error("Failed to reconcile withdrawal", logger.WithdrawalNo(w.WithdrawalNo), zap.Error(err))
		case final == nil || final.Status == models.WithdrawalStatusFailed:
			report.Failed++
		case final.Status == models.WithdrawalStatusApproved:
			report.Approved++
		default:
			report.Pending++
		}
	}

	if report.Checked > 0 {
		logger.Info("Withdrawal reconciliation finished",
			zap.Int("checked", report.Checked),
			zap.Int("approved", report.Approved),
			zap.Int("failed", report.Failed),
			zap.Int("pending", report.Pending),
			zap.Int("errors", report.Errors),
		)
	}
	return report, nil
}

// List 管理端提现列表
func (s *WithdrawalAuditService) List(ctx context.Context, status string, offset, limit int) ([]*models.Withdrawal, int64, error) {
	list, total, err := s.withdrawalRepo.List(ctx, status, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// applyResult 按打款结果落定提现：成功扣减冻结资金，失败保持冻结
func (s *WithdrawalAuditService) applyResult(ctx context.Context, w *models.Withdrawal, result *wechatpay.TransferResult) (*models.Withdrawal, error) {
	switch result.Status {
	case wechatpay.TransferStatusSuccess:
		if err := s.finalizeApproved(ctx, w, result.BatchID); err != nil {
			return nil, err
		}
		logger.Info("Withdrawal paid",
			logger.WithdrawalNo(w.WithdrawalNo),
			logger.MemberID(w.MemberID),
			logger.Amount(w.Amount),
		)
	case wechatpay.TransferStatusFail, wechatpay.TransferStatusNotFound:
		ok, err := s.withdrawalRepo.MarkFailed(ctx, w.ID, result.FailReason, s.now())
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if ok {
			logger.Warn("Withdrawal payout failed, funds stay frozen",
				logger.WithdrawalNo(w.WithdrawalNo),
				logger.MemberID(w.MemberID),
				logger.Reason(result.FailReason),
			)
		}
		return nil, errors.ErrPaymentFailed.WithMessage("打款失败: " + result.FailReason)
	default:
		logger.Info("Withdrawal payout processing", logger.WithdrawalNo(w.WithdrawalNo))
	}
	return s.getWithdrawal(ctx, w.ID)
}

func (s *WithdrawalAuditService) finalizeApproved(ctx context.Context, w *models.Withdrawal, paymentNo string) error {
	return database.RunInTx(ctx, s.db, database.DefaultTxAttempts, nil, func(tx *gorm.DB) error {
		ok, err := s.withdrawalRepo.WithTx(tx).MarkApproved(ctx, w.ID, paymentNo, s.now())
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return errors.ErrWithdrawalStatus
		}

		_, err = s.ledger.DeductFrozenTx(ctx, tx, wallet.Change{
			MemberID:  w.MemberID,
			TenantID:  w.TenantID,
			Amount:    w.Amount,
			Type:      models.TxTypeWithdrawPaid,
			RelatedID: &w.ID,
			Remark:    "提现打款成功",
		})
		return err
	})
}

func (s *WithdrawalAuditService) getWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	w, err := s.withdrawalRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrWithdrawalNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return w, nil
}

// conflictError 条件更新未命中时区分状态已变更与打款处理中
func (s *WithdrawalAuditService) conflictError(ctx context.Context, id int64) error {
	return s.conflictErrorTx(ctx, s.db, id)
}

func (s *WithdrawalAuditService) conflictErrorTx(ctx context.Context, db *gorm.DB, id int64) error {
	current, err := s.withdrawalRepo.WithTx(db).GetByID(ctx, id)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if current.Status == models.WithdrawalStatusPending && current.PaymentRequestedAt != nil {
		return errors.ErrWithdrawProcessing
	}
	return errors.ErrWithdrawalStatus.WithMessage("只能审核待审核状态的提现申请")
}
