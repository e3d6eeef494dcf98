package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/referral-settlement/internal/models"
)

func TestWalletRepository_CreateIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, &models.Wallet{MemberID: 1, TenantID: 1, Balance: decimal.NewFromInt(5)}))
	require.NoError(t, repo.CreateIfAbsent(ctx, &models.Wallet{MemberID: 1, TenantID: 1}))

	var count int64
	db.Model(&models.Wallet{}).Where("member_id = ?", 1).Count(&count)
	assert.Equal(t, int64(1), count)

	wallet, err := repo.GetByMemberID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(5)))
}

func TestWalletRepository_UpdateWithVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, &models.Wallet{MemberID: 1, TenantID: 1}))
	wallet, err := repo.GetByMemberID(ctx, 1)
	require.NoError(t, err)

	wallet.Balance = decimal.RequireFromString("10.50")
	rows, err := repo.UpdateWithVersion(ctx, wallet, wallet.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	t.Run("旧版本号写入失败", func(t *testing.T) {
		wallet.Balance = decimal.NewFromInt(999)
		rows, err := repo.UpdateWithVersion(ctx, wallet, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rows)
	})

	found, err := repo.GetByMemberID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Version)
	assert.True(t, found.Balance.Equal(decimal.RequireFromString("10.50")))
}

func TestWalletTransactionRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletTransactionRepository(db)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.WalletTransaction{
			WalletID:      1,
			MemberID:      1,
			TenantID:      1,
			Type:          models.TxTypeCommissionSettle,
			Account:       models.AccountBalance,
			Amount:        decimal.NewFromInt(int64(i)),
			BalanceBefore: decimal.Zero,
			BalanceAfter:  decimal.NewFromInt(int64(i)),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.WalletTransaction{
		WalletID: 1, MemberID: 1, TenantID: 1, Type: models.TxTypeWithdrawFreeze, Account: models.AccountFrozen,
		Amount: decimal.NewFromInt(1), BalanceBefore: decimal.Zero, BalanceAfter: decimal.NewFromInt(1),
	}))

	list, total, err := repo.ListByMember(ctx, 1, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, list, 2)
	assert.Greater(t, list[0].ID, list[1].ID)

	balanceLog, err := repo.ListByWallet(ctx, 1, models.AccountBalance)
	require.NoError(t, err)
	require.Len(t, balanceLog, 3)
	assert.Less(t, balanceLog[0].ID, balanceLog[1].ID)
}
