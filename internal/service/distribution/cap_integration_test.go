//go:build integration

package distribution

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
	"github.com/dumeirei/referral-settlement/internal/testutil"
)

// 并发计算同一受益人的跨租户佣金，当日合计不得超过上限
func TestCommissionService_ConcurrentDailyCap_Postgres(t *testing.T) {
	db := testutil.StartPostgres(t)
	require.NoError(t, db.Create(&models.SkuDistribution{
		SkuID: 1, Mode: models.DistributionModeRatio, Rate: money("1"),
	}).Error)

	svc := newTestServices(db)
	svc.commission.SetTxOptions(database.RepeatableRead())
	ctx := context.Background()

	// 每单 (0.10 + 0.05) × 0.5 × 100 = 7.50，上限 30 最多容纳 4 单
	enableCrossTenant(t, db, 1, "30")
	createMember(t, db, 1, 2, models.MemberLevelC2, nil, nil)
	createMember(t, db, 3, 1, models.MemberLevelPlain, ptr(1), nil)

	const orders = 8
	for i := int64(0); i < orders; i++ {
		createOrder(t, db, 100+i, 1, 3, nil, item(1, "100", 1))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []int64
	)
	for i := int64(0); i < orders; i++ {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			if _, err := svc.commission.Calculate(ctx, orderID); err != nil {
				mu.Lock()
				failed = append(failed, orderID)
				mu.Unlock()
			}
		}(100 + i)
	}
	wg.Wait()

	// 重试耗尽的订单按队列重投的方式再算一次
	for _, orderID := range failed {
		_, err := svc.commission.Calculate(ctx, orderID)
		require.NoError(t, err)
	}

	var commissions []models.Commission
	require.NoError(t, db.Where("beneficiary_id = ? AND is_cross_tenant = ?", 1, true).Find(&commissions).Error)
	assert.Len(t, commissions, 4)

	total := money("0")
	for _, c := range commissions {
		total = total.Add(c.Amount)
	}
	assert.True(t, total.Equal(money("30")), "total=%s", total)
}

// 并发入账后余额等于成功入账之和，流水与余额一致
func TestLedger_ConcurrentCredit_Postgres(t *testing.T) {
	db := testutil.StartPostgres(t)
	svc := newTestServices(db)
	ctx := context.Background()

	createMember(t, db, 1, 1, models.MemberLevelC1, nil, nil)
	_, err := svc.ledger.GetOrCreate(ctx, 1, 1)
	require.NoError(t, err)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ledger.AddBalance(ctx, wallet.Change{
				MemberID: 1,
				TenantID: 1,
				Amount:   money("1.00"),
				Type:     models.TxTypeCommissionSettle,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Positive(t, succeeded)
	info, err := svc.ledger.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, info.Balance.Equal(decimal.NewFromInt(int64(succeeded))), "balance=%s", info.Balance)

	var txnCount int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).Where("member_id = ?", 1).Count(&txnCount).Error)
	assert.Equal(t, int64(succeeded), txnCount)
}
