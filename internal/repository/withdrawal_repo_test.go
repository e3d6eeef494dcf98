package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/referral-settlement/internal/models"
)

func createTestWithdrawal(t *testing.T, repo *WithdrawalRepository, no string) *models.Withdrawal {
	t.Helper()
	w := &models.Withdrawal{
		WithdrawalNo: no,
		TenantID:     1,
		MemberID:     1,
		Amount:       decimal.NewFromInt(20),
		Method:       models.WithdrawMethodWechat,
		Status:       models.WithdrawalStatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), w))
	return w
}

func TestWithdrawalRepository_ClaimAndApprove(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()
	w := createTestWithdrawal(t, repo, "W1")

	ok, err := repo.ClaimForPayment(ctx, w.ID, 9, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("不能重复占用", func(t *testing.T) {
		ok, err := repo.ClaimForPayment(ctx, w.ID, 9, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("已发起打款不能驳回", func(t *testing.T) {
		ok, err := repo.MarkRejected(ctx, w.ID, 9, "no", time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	ok, err = repo.MarkApproved(ctx, w.ID, "PAY-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, found.Status)
	assert.Equal(t, "PAY-1", *found.PaymentNo)
	assert.Equal(t, int64(9), *found.AuditBy)

	t.Run("终态不再变化", func(t *testing.T) {
		ok, err := repo.MarkFailed(ctx, w.ID, "late", time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestWithdrawalRepository_Reject(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()
	w := createTestWithdrawal(t, repo, "W1")

	ok, err := repo.MarkRejected(ctx, w.ID, 9, "资料不全", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, found.Status)
	assert.Equal(t, "资料不全", *found.AuditRemark)
}

func TestWithdrawalRepository_ListStaleClaimed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	stale := createTestWithdrawal(t, repo, "W1")
	fresh := createTestWithdrawal(t, repo, "W2")
	createTestWithdrawal(t, repo, "W3")

	_, err := repo.ClaimForPayment(ctx, stale.ID, 9, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	_, err = repo.ClaimForPayment(ctx, fresh.ID, 9, time.Now())
	require.NoError(t, err)

	list, err := repo.ListStaleClaimed(ctx, time.Now().Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stale.ID, list[0].ID)
}

func TestWithdrawalRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	a := createTestWithdrawal(t, repo, "W1")
	createTestWithdrawal(t, repo, "W2")
	_, err := repo.MarkRejected(ctx, a.ID, 9, "", time.Now())
	require.NoError(t, err)

	all, total, err := repo.List(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	pending, total, err := repo.List(ctx, models.WithdrawalStatusPending, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "W2", pending[0].WithdrawalNo)

	mine, total, err := repo.ListByMember(ctx, 1, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 1)
}
