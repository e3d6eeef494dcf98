package finance

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/pkg/wechatpay"
)

func TestWithdrawalAuditService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("打款成功扣减冻结金额", func(t *testing.T) {
		db := setupFinanceTestDB(t)
		svc := newTestServices(db)
		createMember(t, db, 1, "openid-1")
		w := createWithdrawal(t, svc, 1, "50.00", "30.00")

		got, err := svc.audit.Audit(ctx, &AuditRequest{WithdrawalID: w.ID, Action: models.AuditActionApprove, AuditorID: 7})
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusApproved, got.Status)
		require.NotNil(t, got.PaymentNo)
		assert.Equal(t, "B"+w.WithdrawalNo, *got.PaymentNo)
		require.NotNil(t, got.AuditBy)
		assert.Equal(t, int64(7), *got.AuditBy)

		require.Len(t, svc.payer.requests, 1)
		assert.Equal(t, w.WithdrawalNo, svc.payer.requests[0].OutBatchNo)
		assert.Equal(t, "openid-1", svc.payer.requests[0].OpenID)
		assert.Equal(t, int64(3000), svc.payer.requests[0].Amount)

		info, err := svc.ledger.Snapshot(ctx, 1)
		require.NoError(t, err)
		assert.True(t, info.Balance.Equal(money("20")))
		assert.True(t, info.Frozen.IsZero())

		var txn models.WalletTransaction
		require.NoError(t, db.Where("type = ?", models.TxTypeWithdrawPaid).First(&txn).Error)
		assert.Equal(t, models.AccountFrozen, txn.Account)
		assert.True(t, txn.Amount.Equal(money("-30")))
	})

	t.Run("打款失败资金保持冻结", func(t *testing.T) {
		db := setupFinanceTestDB(t)
		svc := newTestServices(db)
		createMember(t, db, 1, "openid-1")
		w := createWithdrawal(t, svc, 1, "50.00", "30.00")
		svc.payer.transfer = &wechatpay.TransferResult{Status: wechatpay.TransferStatusFail, FailReason: "NOT_ENOUGH: 商户余额不足"}

		_, err := svc.audit.Approve(ctx, w.ID, 7)
		assert.ErrorIs(t, err, errors.ErrPaymentFailed)

		got, err := svc.audit.getWithdrawal(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusFailed, got.Status)
		require.NotNil(t, got.FailReason)
		assert.Contains(t, *got.FailReason, "NOT_ENOUGH")

		info, err := svc.ledger.Snapshot(ctx, 1)
		require.NoError(t, err)
		assert.True(t, info.Frozen.Equal(money("30")))
	})

	t.Run("未绑定微信不能打款", func(t *testing.T) {
		db := setupFinanceTestDB(t)
		svc := newTestServices(db)
		createMember(t, db, 1, "")
		w := createWithdrawal(t, svc, 1, "50.00", "30.00")

		_, err := svc.audit.Approve(ctx, w.ID, 7)
		assert.ErrorIs(t, err, errors.ErrWithdrawMethod)
		assert.Empty(t, svc.payer.requests)

		got, err := svc.audit.getWithdrawal(ctx, w.ID)
		require.NoError(t, err)
		assert.Nil(t, got.PaymentRequestedAt)
	})

	t.Run("已处理的提现不能重复审核", func(t *testing.T) {
		db := setupFinanceTestDB(t)
		svc := newTestServices(db)
		createMember(t, db, 1, "openid-1")
		w := createWithdrawal(t, svc, 1, "50.00", "30.00")

		_, err := svc.audit.Approve(ctx, w.ID, 7)
		require.NoError(t, err)

		_, err = svc.audit.Approve(ctx, w.ID, 7)
		assert.ErrorIs(t, err, errors.ErrWithdrawalStatus)
		_, err = svc.audit.Reject(ctx, w.ID, 7, "重复")
		assert.ErrorIs(t, err, errors.ErrWithdrawalStatus)
		assert.Len(t, svc.payer.requests, 1)
	})

	t.Run("提现不存在", func(t *testing.T) {
		db := setupFinanceTestDB(t)
		svc := newTestServices(db)

		_, err := svc.audit.Approve(ctx, 404, 7)
		assert.ErrorIs(t, err, errors.ErrWithdrawalNotFound)
	})
}

func TestWithdrawalAuditService_Reject(t *testing.T) {
	db := setupFinanceTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	createMember(t, db, 1, "openid-1")
	w := createWithdrawal(t, svc, 1, "50.00", "30.00")

	got, err := svc.audit.Audit(ctx, &AuditRequest{
		WithdrawalID: w.ID, Action: models.AuditActionReject, AuditorID: 7, Remark: "信息不符",
	})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, got.Status)
	require.NotNil(t, got.AuditRemark)
	assert.Equal(t, "信息不符", *got.AuditRemark)

	info, err := svc.ledger.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, info.Balance.Equal(money("50")))
	assert.True(t, info.Frozen.IsZero())

	t.Run("驳回后不能再通过", func(t *testing.T) {
		_, err := svc.audit.Approve(ctx, w.ID, 7)
		assert.ErrorIs(t, err, errors.ErrWithdrawalStatus)
		assert.Empty(t, svc.payer.requests)
	})
}

func TestWithdrawalAuditService_InvalidAction(t *testing.T) {
	db := setupFinanceTestDB(t)
	svc := newTestServices(db)

	_, err := svc.audit.Audit(context.Background(), &AuditRequest{WithdrawalID: 1, Action: "PAY"})
	assert.ErrorIs(t, err, errors.ErrInvalidAuditAction)
}

func TestWithdrawalAuditService_Reconcile(t *testing.T) {
	db := setupFinanceTestDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	createMember(t, db, 1, "openid-1")
	createMember(t, db, 2, "openid-2")
	createMember(t, db, 3, "openid-3")

	paid := createWithdrawal(t, svc, 1, "50.00", "30.00")
	lost := createWithdrawal(t, svc, 2, "20.00", "10.00")
	pending := createWithdrawal(t, svc, 3, "20.00", "15.00")

	// 打款请求超时，结果未知
	svc.payer.transferErr = stderrors.New("i/o timeout")
	for _, w := range []*models.Withdrawal{paid, lost, pending} {
		_, err := svc.audit.Approve(ctx, w.ID, 7)
		assert.ErrorIs(t, err, errors.ErrWithdrawProcessing)
	}

	t.Run("打款处理中不能驳回或重复发起", func(t *testing.T) {
		_, err := svc.audit.Reject(ctx, paid.ID, 7, "取消")
		assert.ErrorIs(t, err, errors.ErrWithdrawProcessing)
		_, err = svc.audit.Approve(ctx, paid.ID, 7)
		assert.ErrorIs(t, err, errors.ErrWithdrawProcessing)
	})

	svc.payer.query[paid.WithdrawalNo] = &wechatpay.TransferResult{
		OutBatchNo: paid.WithdrawalNo, BatchID: "B-paid", Status: wechatpay.TransferStatusSuccess,
	}
	svc.payer.query[pending.WithdrawalNo] = &wechatpay.TransferResult{
		OutBatchNo: pending.WithdrawalNo, Status: wechatpay.TransferStatusProcessing,
	}

	t.Run("未超时的请求不参与对账", func(t *testing.T) {
		report, err := svc.audit.Reconcile(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, report.Checked)
	})

	report, err := svc.audit.Reconcile(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Pending)
	assert.Equal(t, 0, report.Errors)

	t.Run("渠道成功的提现落定为已打款", func(t *testing.T) {
		got, err := svc.audit.getWithdrawal(ctx, paid.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusApproved, got.Status)
		info, err := svc.ledger.Snapshot(ctx, 1)
		require.NoError(t, err)
		assert.True(t, info.Frozen.IsZero())
	})

	t.Run("渠道未受理的提现落定为失败", func(t *testing.T) {
		got, err := svc.audit.getWithdrawal(ctx, lost.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusFailed, got.Status)
		info, err := svc.ledger.Snapshot(ctx, 2)
		require.NoError(t, err)
		assert.True(t, info.Frozen.Equal(money("10")))
	})

	t.Run("处理中的提现保持待定", func(t *testing.T) {
		got, err := svc.audit.getWithdrawal(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusPending, got.Status)
		assert.NotNil(t, got.PaymentRequestedAt)
	})
}
