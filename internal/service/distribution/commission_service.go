package distribution

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
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
)

// 跳过原因，同时作为指标标签
const (
	SkipOrderNotFound   = "order_not_found"
	SkipMemberNotFound  = "member_not_found"
	SkipSelfPurchase    = "self_purchase"
	SkipReferralCycle   = "referral_cycle"
	SkipZeroBase        = "zero_base"
	SkipNoBeneficiary   = "no_beneficiary"
	SkipBeneficiaryDup  = "beneficiary_conflict"
	SkipBlacklisted     = "blacklisted"
	SkipLevelMismatch   = "level_mismatch"
	SkipCrossDisabled   = "cross_tenant_disabled"
	SkipBelowMinPayable = "below_min_payable"
	SkipDailyCap        = "daily_cap_exceeded"
	SkipFullTake        = "full_take"
)

// CommissionService 佣金服务：计算、取消与查询
type CommissionService struct {
	db             *gorm.DB
	orderRepo      *repository.OrderRepository
	memberRepo     *repository.MemberRepository
	distRepo       *repository.DistributionRepository
	commissionRepo *repository.CommissionRepository
	ledger         *wallet.Ledger
	resolver       *ReferralResolver

	defaults    Rules
	settleDelay time.Duration
	txOptions   *sql.TxOptions
	now         func() time.Time
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	db *gorm.DB,
	orderRepo *repository.OrderRepository,
	memberRepo *repository.MemberRepository,
	distRepo *repository.DistributionRepository,
	commissionRepo *repository.CommissionRepository,
	ledger *wallet.Ledger,
	resolver *ReferralResolver,
) *CommissionService {
	return &CommissionService{
		db:             db,
		orderRepo:      orderRepo,
		memberRepo:     memberRepo,
		distRepo:       distRepo,
		commissionRepo: commissionRepo,
		ledger:         ledger,
		resolver:       resolver,
		defaults:       DefaultRules(),
		settleDelay:    DefaultSettleDays * 24 * time.Hour,
		now:            time.Now,
	}
}

// SetDefaults 设置租户未配置时的默认参数与冻结期
func (s *CommissionService) SetDefaults(rules Rules, settleDelay time.Duration) {
	s.defaults = rules
	if settleDelay > 0 {
		s.settleDelay = settleDelay
	}
}

// SetTxOptions 设置计算事务的隔离级别，生产环境使用可重复读
func (s *CommissionService) SetTxOptions(opts *sql.TxOptions) {
	s.txOptions = opts
}

// CalculateResult 计算结果
type CalculateResult struct {
	SkipReason  string               `json:"skip_reason,omitempty"` // 整单无佣金时的原因
	Commissions []*models.Commission `json:"commissions"`           // 本订单的佣金记录（含此前已生成的）
	Created     int                  `json:"created"`               // 本次新建条数

	skipped []skippedCandidate
	created []*models.Commission
}

// skippedCandidate 被规则拦截的候选，提交后统一记录
type skippedCandidate struct {
	level  int
	reason string
}

// candidate 候选佣金
type candidate struct {
	level       int
	beneficiary *models.Member
	rate        decimal.Decimal
	amount      decimal.Decimal
	cross       bool
}

// calcContext 单次计算共享的快照
type calcContext struct {
	tx       *gorm.DB
	order    *models.Order
	buyer    *models.Member
	base     decimal.Decimal
	rules    Rules
	existing map[string]*models.Commission
	skipped  []skippedCandidate
}

func commissionKey(beneficiaryID int64, level int) string {
	return fmt.Sprintf("%d:%d", beneficiaryID, level)
}

// Calculate 计算订单佣金并以冻结状态幂等落库。
// 订单或会员缺失、规则拦截均不是错误，只记录日志；返回的错误交由队列重试。
func (s *CommissionService) Calculate(ctx context.Context, orderID int64) (*CalculateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "commission.calculate", tracing.OrderID(orderID))
	defer span.End()

	var result *CalculateResult
	err := database.RunInTx(ctx, s.db, database.DefaultTxAttempts, s.txOptions, func(tx *gorm.DB) error {
		r, err := s.calculateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	s.report(orderID, result)
	return result, nil
}

// report 事务提交后记录指标与日志，重试中回滚的尝试不计入
func (s *CommissionService) report(orderID int64, result *CalculateResult) {
	m := metrics.GetMetrics()
	if result.SkipReason != "" {
		m.RecordCommissionSkipped(result.SkipReason)
		logger.Info("Commission calculation skipped",
			logger.OrderID(orderID),
			logger.Reason(result.SkipReason),
		)
	}
	for _, sc := range result.skipped {
		m.RecordCommissionSkipped(sc.reason)
		logger.Info("Commission candidate skipped",
			logger.OrderID(orderID),
			zap.Int("level", sc.level),
			logger.Reason(sc.reason),
		)
	}
	for _, c := range result.created {
		m.RecordCommissionCreated(c.Level, c.IsCrossTenant)
		logger.Info("Commission created",
			logger.OrderID(orderID),
			logger.MemberID(c.BeneficiaryID),
			zap.Int("level", c.Level),
			logger.Amount(c.Amount),
			zap.Bool("cross_tenant", c.IsCrossTenant),
		)
	}
}

func (s *CommissionService) calculateTx(ctx context.Context, tx *gorm.DB, orderID int64) (*CalculateResult, error) {
	order, err := s.orderRepo.WithTx(tx).Find(ctx, orderID, true)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return &CalculateResult{SkipReason: SkipOrderNotFound}, nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	tracing.SetAttributes(ctx, tracing.TenantID(order.TenantID), tracing.MemberID(order.MemberID))

	buyer, err := s.memberRepo.WithTx(tx).GetByID(ctx, order.MemberID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return &CalculateResult{SkipReason: SkipMemberNotFound}, nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if IsSelfPurchase(buyer.ID, order.ShareUserID, buyer.ParentID) {
		return &CalculateResult{SkipReason: SkipSelfPurchase}, nil
	}

	if buyer.ParentID != nil {
		cycle, err := s.resolver.HasCycle(ctx, tx, *buyer.ParentID, buyer.ID, s.resolver.MaxDepth())
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if cycle {
			logger.Warn("Referral chain contains cycle",
				logger.OrderID(order.ID),
				logger.MemberID(buyer.ID),
			)
			return &CalculateResult{SkipReason: SkipReferralCycle}, nil
		}
	}

	skuIDs := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		skuIDs = append(skuIDs, item.SkuID)
	}
	skuRules, err := s.distRepo.WithTx(tx).GetSkuRules(ctx, skuIDs)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	base := ComputeBase(order.Items, skuRules)
	if !base.IsPositive() {
		return &CalculateResult{SkipReason: SkipZeroBase}, nil
	}

	tenantCfg, err := s.distRepo.WithTx(tx).GetConfig(ctx, order.TenantID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	existingList, err := s.commissionRepo.WithTx(tx).GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	existing := make(map[string]*models.Commission, len(existingList))
	for _, c := range existingList {
		existing[commissionKey(c.BeneficiaryID, c.Level)] = c
	}

	cc := &calcContext{
		tx:       tx,
		order:    order,
		buyer:    buyer,
		base:     base,
		rules:    s.defaults.forTenant(tenantCfg),
		existing: existing,
	}

	var candidates []*candidate

	l1, l1ID, fullTake, err := s.resolveLevel1(ctx, cc)
	if err != nil {
		return nil, err
	}
	if l1 != nil {
		candidates = append(candidates, l1)
	}

	if fullTake {
		s.skip(ctx, cc, models.CommissionLevel2, SkipFullTake)
	} else {
		l2, err := s.resolveLevel2(ctx, cc, l1ID)
		if err != nil {
			return nil, err
		}
		if l2 != nil {
			candidates = append(candidates, l2)
		}
	}

	return s.persist(ctx, cc, candidates)
}

// resolveLevel1 直推：分享人优先，否则取买家绑定上级
func (s *CommissionService) resolveLevel1(ctx context.Context, cc *calcContext) (*candidate, *int64, bool, error) {
	beneficiaryID := cc.order.ShareUserID
	if beneficiaryID == nil {
		beneficiaryID = cc.buyer.ParentID
	}
	if beneficiaryID == nil {
		s.skip(ctx, cc, models.CommissionLevel1, SkipNoBeneficiary)
		return nil, nil, false, nil
	}
	if *beneficiaryID == cc.buyer.ID {
		s.skip(ctx, cc, models.CommissionLevel1, SkipBeneficiaryDup)
		return nil, beneficiaryID, false, nil
	}

	beneficiary, ok, err := s.loadEligible(ctx, cc, *beneficiaryID, models.CommissionLevel1)
	if err != nil || !ok {
		return nil, beneficiaryID, false, err
	}
	if beneficiary.LevelID < models.MemberLevelC1 {
		s.skip(ctx, cc, models.CommissionLevel1, SkipLevelMismatch)
		return nil, beneficiaryID, false, nil
	}

	cross := beneficiary.TenantID != cc.order.TenantID
	if cross && !cc.rules.EnableCrossTenant {
		s.skip(ctx, cc, models.CommissionLevel1, SkipCrossDisabled)
		return nil, beneficiaryID, false, nil
	}

	mult := cc.rules.multiplier(cross)
	rate := cc.rules.Level1Rate.Mul(mult)

	// 顶级推荐人没有上级时，间推无人可得，由直推一并获得
	fullTake := beneficiary.LevelID == models.MemberLevelC2 && beneficiary.ParentID == nil
	if fullTake {
		rate = rate.Add(cc.rules.Level2Rate.Mul(mult))
	}

	c, err := s.finalize(ctx, cc, &candidate{
		level:       models.CommissionLevel1,
		beneficiary: beneficiary,
		rate:        rate,
		cross:       cross,
	})
	return c, beneficiaryID, fullTake, err
}

// resolveLevel2 间推：有分享人时取分享人的上级，否则取买家的间推上级
func (s *CommissionService) resolveLevel2(ctx context.Context, cc *calcContext, l1ID *int64) (*candidate, error) {
	var beneficiaryID *int64
	if cc.order.ShareUserID != nil {
		sharerParent, err := s.memberRepo.WithTx(cc.tx).GetParentID(ctx, *cc.order.ShareUserID)
		if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		beneficiaryID = sharerParent
	} else {
		beneficiaryID = cc.buyer.IndirectParentID
	}

	if beneficiaryID == nil {
		s.skip(ctx, cc, models.CommissionLevel2, SkipNoBeneficiary)
		return nil, nil
	}
	id := *beneficiaryID
	if id == cc.buyer.ID ||
		(l1ID != nil && id == *l1ID) ||
		(cc.order.ShareUserID != nil && id == *cc.order.ShareUserID) {
		s.skip(ctx, cc, models.CommissionLevel2, SkipBeneficiaryDup)
		return nil, nil
	}

	beneficiary, ok, err := s.loadEligible(ctx, cc, id, models.CommissionLevel2)
	if err != nil || !ok {
		return nil, err
	}
	if beneficiary.LevelID != models.MemberLevelC2 {
		s.skip(ctx, cc, models.CommissionLevel2, SkipLevelMismatch)
		return nil, nil
	}

	cross := beneficiary.TenantID != cc.order.TenantID
	if cross && !cc.rules.EnableCrossTenant {
		s.skip(ctx, cc, models.CommissionLevel2, SkipCrossDisabled)
		return nil, nil
	}

	return s.finalize(ctx, cc, &candidate{
		level:       models.CommissionLevel2,
		beneficiary: beneficiary,
		rate:        cc.rules.Level2Rate.Mul(cc.rules.multiplier(cross)),
		cross:       cross,
	})
}

// loadEligible 加载受益人并检查黑名单
func (s *CommissionService) loadEligible(ctx context.Context, cc *calcContext, memberID int64, level int) (*models.Member, bool, error) {
	member, err := s.memberRepo.WithTx(cc.tx).GetByID(ctx, memberID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			s.skip(ctx, cc, level, SkipNoBeneficiary)
			return nil, false, nil
		}
		return nil, false, errors.ErrDatabaseError.WithError(err)
	}

	blacklisted, err := s.distRepo.WithTx(cc.tx).IsBlacklisted(ctx, cc.order.TenantID, memberID)
	if err != nil {
		return nil, false, errors.ErrDatabaseError.WithError(err)
	}
	if blacklisted {
		s.skip(ctx, cc, level, SkipBlacklisted)
		return nil, false, nil
	}
	return member, true, nil
}

// finalize 计算金额、检查最小可付金额与跨租户日限额
func (s *CommissionService) finalize(ctx context.Context, cc *calcContext, c *candidate) (*candidate, error) {
	c.amount = utils.RoundMoney(cc.base.Mul(c.rate))
	if c.amount.LessThan(utils.MinPayable) {
		s.skip(ctx, cc, c.level, SkipBelowMinPayable)
		return nil, nil
	}

	// 重复投递时已落库的记录不再占用额度
	if _, ok := cc.existing[commissionKey(c.beneficiary.ID, c.level)]; ok {
		return c, nil
	}

	if c.cross {
		passed, err := s.checkDailyCap(ctx, cc.tx, cc.order.TenantID, c.beneficiary.ID, c.amount, cc.rules.CrossMaxDaily)
		if err != nil {
			return nil, err
		}
		if !passed {
			s.skip(ctx, cc, c.level, SkipDailyCap)
			return nil, nil
		}
	}
	return c, nil
}

// checkDailyCap 锁住 (租户, 受益人, 当日) 累计行后读取当日跨租户佣金合计，
// 加上本次金额不超过上限才通过并写回累计。锁持有到外层事务结束。
func (s *CommissionService) checkDailyCap(ctx context.Context, tx *gorm.DB, tenantID, beneficiaryID int64, amount, limit decimal.Decimal) (bool, error) {
	now := s.now()
	repo := s.commissionRepo.WithTx(tx)

	row, err := repo.LockDailyTotal(ctx, tenantID, beneficiaryID, now.Format("2006-01-02"))
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}

	today, err := repo.SumCrossTenantSince(ctx, tenantID, beneficiaryID, utils.StartOfDay(now))
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}

	total := today.Add(amount)
	if total.GreaterThan(limit) {
		logger.Info("Cross-tenant daily cap exceeded",
			logger.TenantID(tenantID),
			logger.MemberID(beneficiaryID),
			zap.String("today", today.StringFixed(2)),
			logger.Amount(amount),
			zap.String("limit", limit.StringFixed(2)),
		)
		return false, nil
	}

	if err := repo.UpdateDailyTotal(ctx, row.ID, total); err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}
	return true, nil
}

// persist 按唯一键幂等写入候选佣金
func (s *CommissionService) persist(ctx context.Context, cc *calcContext, candidates []*candidate) (*CalculateResult, error) {
	result := &CalculateResult{skipped: cc.skipped}
	planSettleTime := s.now().Add(s.settleDelay)
	repo := s.commissionRepo.WithTx(cc.tx)

	for _, c := range candidates {
		if prev, ok := cc.existing[commissionKey(c.beneficiary.ID, c.level)]; ok {
			result.Commissions = append(result.Commissions, prev)
			continue
		}

		record := &models.Commission{
			OrderID:             cc.order.ID,
			BeneficiaryID:       c.beneficiary.ID,
			Level:               c.level,
			TenantID:            cc.order.TenantID,
			BeneficiaryTenantID: c.beneficiary.TenantID,
			BuyerID:             cc.buyer.ID,
			BaseAmount:          utils.RoundMoney(cc.base),
			RateSnapshot:        c.rate,
			Amount:              c.amount,
			Status:              models.CommissionStatusFrozen,
			IsCrossTenant:       c.cross,
			PlanSettleTime:      planSettleTime,
		}
		created, err := repo.CreateIfAbsent(ctx, record)
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if created {
			result.Created++
			result.created = append(result.created, record)
		}
		result.Commissions = append(result.Commissions, record)
	}
	return result, nil
}

func (s *CommissionService) skip(_ context.Context, cc *calcContext, level int, reason string) {
	cc.skipped = append(cc.skipped, skippedCandidate{level: level, reason: reason})
}

// CancelByOrderID 取消订单的全部佣金（退款）。
// 冻结中的直接取消；已入账的先从钱包回扣（余额可为负）再取消。每条佣金独立事务。
func (s *CommissionService) CancelByOrderID(ctx context.Context, orderID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "commission.cancel", tracing.OrderID(orderID))
	defer span.End()

	commissions, err := s.commissionRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}

	cancelled := 0
	for _, c := range commissions {
		if c.Status == models.CommissionStatusCancelled {
			continue
		}
		done, err := s.cancelOne(ctx, c.ID)
		if err != nil {
			tracing.SetError(ctx, err)
			logger.Error("Failed to cancel commission",
				logger.OrderID(orderID),
				logger.CommissionID(c.ID),
				zap.Error(err),
			)
			return cancelled, err
		}
		if done {
			cancelled++
		}
	}
	return cancelled, nil
}

func (s *CommissionService) cancelOne(ctx context.Context, commissionID int64) (bool, error) {
	done := false
	err := database.RunInTx(ctx, s.db, database.DefaultTxAttempts, nil, func(tx *gorm.DB) error {
		done = false
		repo := s.commissionRepo.WithTx(tx)

		c, err := repo.GetByID(ctx, commissionID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}

		now := s.now()
		switch c.Status {
		case models.CommissionStatusFrozen:
			ok, err := repo.MarkCancelled(ctx, c.ID, models.CommissionStatusFrozen, now)
			if err != nil {
				return errors.ErrDatabaseError.WithError(err)
			}
			if !ok {
				return errors.ErrConcurrencyConflict
			}
		case models.CommissionStatusSettled:
			ok, err := repo.MarkCancelled(ctx, c.ID, models.CommissionStatusSettled, now)
			if err != nil {
				return errors.ErrDatabaseError.WithError(err)
			}
			if !ok {
				return errors.ErrConcurrencyConflict
			}
			if _, err := s.ledger.DeductBalanceTx(ctx, tx, wallet.Change{
				MemberID:  c.BeneficiaryID,
				TenantID:  c.BeneficiaryTenantID,
				Amount:    c.Amount,
				Type:      models.TxTypeCommissionRollback,
				RelatedID: &c.ID,
				Remark:    fmt.Sprintf("订单 %d 退款，佣金退回", c.OrderID),
			}); err != nil {
				return err
			}
		default:
			return nil
		}

		done = true
		logger.Info("Commission cancelled",
			logger.CommissionID(c.ID),
			logger.MemberID(c.BeneficiaryID),
			zap.String("from", c.Status),
			logger.Amount(c.Amount),
		)
		return nil
	})
	return done, err
}

// ListByOrder 订单详情展示用
func (s *CommissionService) ListByOrder(ctx context.Context, orderID int64) ([]*models.Commission, error) {
	list, err := s.commissionRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return list, nil
}

// ListByOrderForMember 买家可见订单全部佣金，其他会员只能看到自己作为受益人的记录
func (s *CommissionService) ListByOrderForMember(ctx context.Context, orderID, memberID int64) ([]*models.Commission, error) {
	order, err := s.orderRepo.Find(ctx, orderID, false)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrOrderNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	list, err := s.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.MemberID == memberID {
		return list, nil
	}

	visible := make([]*models.Commission, 0, len(list))
	for _, c := range list {
		if c.BeneficiaryID == memberID {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// ListByMember 分页获取会员的佣金记录
func (s *CommissionService) ListByMember(ctx context.Context, memberID int64, status string, offset, limit int) ([]*models.Commission, int64, error) {
	list, total, err := s.commissionRepo.ListByBeneficiary(ctx, memberID, status, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}
