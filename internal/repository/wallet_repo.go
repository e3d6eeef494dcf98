package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/models"
)

// WalletRepository 钱包仓储
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// WithTx 返回绑定到事务的仓储副本
func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

// GetByMemberID 根据会员 ID 获取钱包
func (r *WalletRepository) GetByMemberID(ctx context.Context, memberID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("member_id = ?", memberID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreateIfAbsent 创建钱包，会员已有钱包时忽略
func (r *WalletRepository) CreateIfAbsent(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "member_id"}}, DoNothing: true}).
		Create(wallet).Error
}

// UpdateWithVersion 以 expectedVersion 为条件写回余额字段并递增版本号，返回受影响行数
func (r *WalletRepository) UpdateWithVersion(ctx context.Context, wallet *models.Wallet, expectedVersion int64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, expectedVersion).
		Updates(map[string]interface{}{
			"balance":      wallet.Balance,
			"frozen":       wallet.Frozen,
			"total_income": wallet.TotalIncome,
			"version":      expectedVersion + 1,
		})
	return result.RowsAffected, result.Error
}

// WalletTransactionRepository 钱包流水仓储
type WalletTransactionRepository struct {
	db *gorm.DB
}

// NewWalletTransactionRepository 创建钱包流水仓储
func NewWalletTransactionRepository(db *gorm.DB) *WalletTransactionRepository {
	return &WalletTransactionRepository{db: db}
}

// WithTx 返回绑定到事务的仓储副本
func (r *WalletTransactionRepository) WithTx(tx *gorm.DB) *WalletTransactionRepository {
	return &WalletTransactionRepository{db: tx}
}

// Create 追加流水
func (r *WalletTransactionRepository) Create(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// ListByMember 分页获取会员流水（倒序）
func (r *WalletTransactionRepository) ListByMember(ctx context.Context, memberID int64, offset, limit int) ([]*models.WalletTransaction, int64, error) {
	var list []*models.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("member_id = ?", memberID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Scopes(database.Latest(offset, limit)).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListByWallet 按写入顺序获取某钱包某科目的全部流水
func (r *WalletTransactionRepository) ListByWallet(ctx context.Context, walletID int64, account string) ([]*models.WalletTransaction, error) {
	var list []*models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND account = ?", walletID, account).
		Order("id ASC").
		Find(&list).Error
	return list, err
}
