// Package finance 提供佣金结算与提现审核服务
package finance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/metrics"
	"github.com/dumeirei/referral-settlement/internal/common/tracing"
	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/internal/repository"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
)

// DefaultSettleBatchSize 每批扫描的待结算佣金数
const DefaultSettleBatchSize = 100

// SettlementService 佣金结算服务
type SettlementService struct {
	db             *gorm.DB
	commissionRepo *repository.CommissionRepository
	ledger         *wallet.Ledger
	batchSize      int
	now            func() time.Time
}

// NewSettlementService 创建结算服务
func NewSettlementService(db *gorm.DB, commissionRepo *repository.CommissionRepository, ledger *wallet.Ledger, batchSize int) *SettlementService {
	if batchSize <= 0 {
		batchSize = DefaultSettleBatchSize
	}
	return &SettlementService{
		db:             db,
		commissionRepo: commissionRepo,
		ledger:         ledger,
		batchSize:      batchSize,
		now:            time.Now,
	}
}

// SettleReport 一次结算的统计
type SettleReport struct {
	Scanned int
	Settled int
	Skipped int
	Failed  int
}

// SettleDue 结算所有到期的冻结佣金。
// 单条失败只记录日志并计数，不影响同批其他记录；失败记录留待下一轮重试。
func (s *SettlementService) SettleDue(ctx context.Context) (*SettleReport, error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.run", tracing.Operation("settle_due"))
	defer span.End()

	start := time.Now()
	now := s.now()
	report := &SettleReport{}
	m := metrics.GetMetrics()

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			m.RecordSettlementRun("aborted", time.Since(start))
			return report, err
		}

		batch, err := s.commissionRepo.ListDueFrozen(ctx, now, afterID, s.batchSize)
		if err != nil {
			tracing.SetError(ctx, err)
			m.RecordSettlementRun("error", time.Since(start))
			return report, errors.ErrDatabaseError.WithError(err)
		}
		if len(batch) == 0 {
			break
		}

		for _, c := range batch {
			afterID = c.ID
			report.Scanned++

			settled, err := s.settleOne(ctx, c.ID)
			switch {
			case err != nil:
				report.Failed++
				m.RecordSettlementRecord("failed")
				logger.Error("Failed to settle commission",
					logger.CommissionID(c.ID),
					logger.MemberID(c.BeneficiaryID),
					logger.Amount(c.Amount),
					zap.Error(err),
				)
			case settled:
				report.Settled++
				m.RecordSettlementRecord("settled")
			default:
				report.Skipped++
				m.RecordSettlementRecord("skipped")
			}
		}

		if len(batch) < s.batchSize {
			break
		}
	}

	m.RecordSettlementRun("ok", time.Since(start))
	logger.Info("Settlement finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("settled", report.Settled),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		logger.Latency(time.Since(start)),
	)
	return report, nil
}

// settleOne 在独立事务中完成 FROZEN → SETTLED 并入账。
// 记录已被取消或已结算时返回 false。
func (s *SettlementService) settleOne(ctx context.Context, commissionID int64) (bool, error) {
	settled := false
	err := database.RunInTx(ctx, s.db, database.DefaultTxAttempts, nil, func(tx *gorm.DB) error {
		settled = false
		repo := s.commissionRepo.WithTx(tx)

		c, err := repo.GetByID(ctx, commissionID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if c.Status != models.CommissionStatusFrozen {
			return nil
		}

		ok, err := repo.MarkSettled(ctx, c.ID, s.now())
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return nil
		}

		if _, err := s.ledger.AddBalanceTx(ctx, tx, wallet.Change{
			MemberID:  c.BeneficiaryID,
			TenantID:  c.BeneficiaryTenantID,
			Amount:    c.Amount,
			Type:      models.TxTypeCommissionSettle,
			RelatedID: &c.ID,
			Remark:    fmt.Sprintf("订单 %d 佣金结算", c.OrderID),
		}); err != nil {
			return err
		}

		settled = true
		return nil
	})
	return settled, err
}
