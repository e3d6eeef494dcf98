package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/idgen"
	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/internal/repository"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
	"github.com/dumeirei/referral-settlement/internal/testutil"
	"github.com/dumeirei/referral-settlement/pkg/wechatpay"
)

func setupFinanceTestDB(t *testing.T) *gorm.DB {
	return testutil.NewSQLite(t)
}

// fakePayer 可编排结果的打款渠道
type fakePayer struct {
	mu          sync.Mutex
	transferErr error
	transfer    *wechatpay.TransferResult
	query       map[string]*wechatpay.TransferResult
	requests    []*wechatpay.TransferRequest
}

func (p *fakePayer) TransferToBalance(_ context.Context, req *wechatpay.TransferRequest) (*wechatpay.TransferResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.transferErr != nil {
		return nil, p.transferErr
	}
	if p.transfer != nil {
		result := *p.transfer
		result.OutBatchNo = req.OutBatchNo
		return &result, nil
	}
	return &wechatpay.TransferResult{
		OutBatchNo: req.OutBatchNo,
		BatchID:    "B" + req.OutBatchNo,
		Status:     wechatpay.TransferStatusSuccess,
	}, nil
}

func (p *fakePayer) QueryTransfer(_ context.Context, outBatchNo string) (*wechatpay.TransferResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.query[outBatchNo]; ok {
		return r, nil
	}
	return &wechatpay.TransferResult{OutBatchNo: outBatchNo, Status: wechatpay.TransferStatusNotFound}, nil
}

type testServices struct {
	db         *gorm.DB
	ledger     *wallet.Ledger
	payer      *fakePayer
	settlement *SettlementService
	audit      *WithdrawalAuditService
}

func newTestServices(db *gorm.DB) *testServices {
	ledger := wallet.NewLedger(db, repository.NewWalletRepository(db), repository.NewWalletTransactionRepository(db))
	payer := &fakePayer{query: map[string]*wechatpay.TransferResult{}}
	return &testServices{
		db:         db,
		ledger:     ledger,
		payer:      payer,
		settlement: NewSettlementService(db, repository.NewCommissionRepository(db), ledger, 2),
		audit: NewWithdrawalAuditService(
			db,
			repository.NewWithdrawalRepository(db),
			repository.NewMemberRepository(db),
			ledger,
			payer,
		),
	}
}

func createMember(t *testing.T, db *gorm.DB, id int64, openID string) {
	t.Helper()
	m := &models.Member{ID: id, TenantID: 1, Status: models.MemberStatusActive}
	if openID != "" {
		m.OpenID = &openID
	}
	require.NoError(t, db.Create(m).Error)
}

func createCommission(t *testing.T, db *gorm.DB, orderID, beneficiaryID int64, amount, status string, planSettle time.Time) *models.Commission {
	t.Helper()
	c := &models.Commission{
		OrderID:             orderID,
		BeneficiaryID:       beneficiaryID,
		Level:               models.CommissionLevel1,
		TenantID:            1,
		BeneficiaryTenantID: 1,
		BuyerID:             99,
		BaseAmount:          money("100"),
		RateSnapshot:        money("0.1"),
		Amount:              money(amount),
		Status:              status,
		PlanSettleTime:      planSettle,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// createWithdrawal 给会员入账 balance 后冻结 amount 并创建待审核提现
func createWithdrawal(t *testing.T, svc *testServices, memberID int64, balance, amount string) *models.Withdrawal {
	t.Helper()
	ctx := context.Background()

	_, err := svc.ledger.AddBalance(ctx, wallet.Change{
		MemberID: memberID, TenantID: 1, Amount: money(balance), Type: models.TxTypeCommissionSettle,
	})
	require.NoError(t, err)

	w := &models.Withdrawal{
		WithdrawalNo: idgen.NextNo(),
		TenantID:     1,
		MemberID:     memberID,
		Amount:       money(amount),
		Method:       models.WithdrawMethodWechat,
		Status:       models.WithdrawalStatusPending,
	}
	require.NoError(t, svc.db.Create(w).Error)

	_, err = svc.ledger.Freeze(ctx, wallet.Change{
		MemberID: memberID, TenantID: 1, Amount: w.Amount, Type: models.TxTypeWithdrawFreeze, RelatedID: &w.ID,
	})
	require.NoError(t, err)
	return w
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
