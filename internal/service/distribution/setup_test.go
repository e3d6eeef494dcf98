package distribution

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/internal/repository"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
	"github.com/dumeirei/referral-settlement/internal/testutil"
)

// setupDistributionTestDB 创建测试数据库
func setupDistributionTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewSQLite(t)

	// SKU 1 按金额全额计入基数，SKU 2 每件固定 3 元，SKU 3 不参与分销
	require.NoError(t, db.Create(&[]models.SkuDistribution{
		{SkuID: 1, Mode: models.DistributionModeRatio, Rate: decimal.NewFromInt(1)},
		{SkuID: 2, Mode: models.DistributionModeFixed, Rate: decimal.NewFromInt(3)},
		{SkuID: 3, Mode: models.DistributionModeNone, Rate: decimal.Zero},
	}).Error)
	return db
}

type testServices struct {
	db         *gorm.DB
	ledger     *wallet.Ledger
	resolver   *ReferralResolver
	commission *CommissionService
	withdraw   *WithdrawService
}

func newTestServices(db *gorm.DB) *testServices {
	memberRepo := repository.NewMemberRepository(db)
	ledger := wallet.NewLedger(db, repository.NewWalletRepository(db), repository.NewWalletTransactionRepository(db))
	resolver := NewReferralResolver(db, memberRepo, DefaultMaxReferralDepth)
	return &testServices{
		db:       db,
		ledger:   ledger,
		resolver: resolver,
		commission: NewCommissionService(
			db,
			repository.NewOrderRepository(db),
			memberRepo,
			repository.NewDistributionRepository(db),
			repository.NewCommissionRepository(db),
			ledger,
			resolver,
		),
		withdraw: NewWithdrawService(db, repository.NewWithdrawalRepository(db), ledger, nil),
	}
}

// createMember 创建指定 ID 的会员
func createMember(t *testing.T, db *gorm.DB, id, tenantID int64, level int8, parentID, indirectParentID *int64) *models.Member {
	t.Helper()
	m := &models.Member{
		ID:               id,
		TenantID:         tenantID,
		LevelID:          level,
		ParentID:         parentID,
		IndirectParentID: indirectParentID,
		Status:           models.MemberStatusActive,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

// createOrder 创建已支付订单，items 为 (skuID, 金额, 数量)
func createOrder(t *testing.T, db *gorm.DB, id, tenantID, memberID int64, shareUserID *int64, items ...models.OrderItem) *models.Order {
	t.Helper()
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalAmount)
	}
	o := &models.Order{
		ID:          id,
		OrderNo:     fmt.Sprintf("NO%d", id),
		TenantID:    tenantID,
		MemberID:    memberID,
		ShareUserID: shareUserID,
		TotalAmount: total,
		Status:      models.OrderStatusPaid,
		Items:       items,
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

func item(skuID int64, amount string, qty int) models.OrderItem {
	return models.OrderItem{SkuID: skuID, TotalAmount: decimal.RequireFromString(amount), Quantity: qty}
}

func ptr(v int64) *int64 {
	return &v
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
