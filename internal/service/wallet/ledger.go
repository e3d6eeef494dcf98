// Package wallet 提供会员佣金钱包记账服务
package wallet

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/metrics"
	"github.com/dumeirei/referral-settlement/internal/common/utils"
	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/internal/repository"
)

// Ledger 钱包账本。钱包行只能通过这里的操作修改，每次修改都以版本号为条件并追加一条流水。
//
// 不带 Tx 后缀的方法自行开启事务并在版本冲突时整体重试；
// 带 Tx 后缀的方法在调用方事务中执行，冲突以 errors.ErrConcurrencyConflict 返回，由调用方决定是否重跑整个事务。
type Ledger struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
	txnRepo    *repository.WalletTransactionRepository
}

// NewLedger 创建钱包账本
func NewLedger(db *gorm.DB, walletRepo *repository.WalletRepository, txnRepo *repository.WalletTransactionRepository) *Ledger {
	return &Ledger{
		db:         db,
		walletRepo: walletRepo,
		txnRepo:    txnRepo,
	}
}

// Change 一次记账请求
type Change struct {
	MemberID  int64
	TenantID  int64 // 钱包不存在时用于创建
	Amount    decimal.Decimal
	Type      string
	RelatedID *int64
	Remark    string
}

// Info 钱包快照
type Info struct {
	Balance     decimal.Decimal `json:"balance"`
	Frozen      decimal.Decimal `json:"frozen"`
	TotalIncome decimal.Decimal `json:"total_income"`
}

// TransactionRecord 流水记录
type TransactionRecord struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	TypeName      string          `json:"type_name"`
	Account       string          `json:"account"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	RelatedID     *int64          `json:"related_id,omitempty"`
	Remark        string          `json:"remark"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GetOrCreate 获取会员钱包，不存在时以零余额创建
func (l *Ledger) GetOrCreate(ctx context.Context, memberID, tenantID int64) (*models.Wallet, error) {
	return l.GetOrCreateTx(ctx, l.db, memberID, tenantID)
}

// GetOrCreateTx 在已有事务中获取或创建钱包
func (l *Ledger) GetOrCreateTx(ctx context.Context, tx *gorm.DB, memberID, tenantID int64) (*models.Wallet, error) {
	repo := l.walletRepo.WithTx(tx)

	wallet, err := repo.GetByMemberID(ctx, memberID)
	if err == nil {
		return wallet, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if err := repo.CreateIfAbsent(ctx, &models.Wallet{
		MemberID:    memberID,
		TenantID:    tenantID,
		Balance:     decimal.Zero,
		Frozen:      decimal.Zero,
		TotalIncome: decimal.Zero,
	}); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	wallet, err = repo.GetByMemberID(ctx, memberID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return wallet, nil
}

// Snapshot 获取钱包快照，没有钱包时返回零值
func (l *Ledger) Snapshot(ctx context.Context, memberID int64) (*Info, error) {
	wallet, err := l.walletRepo.GetByMemberID(ctx, memberID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return &Info{Balance: decimal.Zero, Frozen: decimal.Zero, TotalIncome: decimal.Zero}, nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return &Info{
		Balance:     wallet.Balance,
		Frozen:      wallet.Frozen,
		TotalIncome: wallet.TotalIncome,
	}, nil
}

// ListTransactions 分页获取会员流水
func (l *Ledger) ListTransactions(ctx context.Context, memberID int64, offset, limit int) ([]*TransactionRecord, int64, error) {
	list, total, err := l.txnRepo.ListByMember(ctx, memberID, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}

	records := make([]*TransactionRecord, len(list))
	for i, txn := range list {
		records[i] = &TransactionRecord{
			ID:            txn.ID,
			Type:          txn.Type,
			TypeName:      typeName(txn.Type),
			Account:       txn.Account,
			Amount:        txn.Amount,
			BalanceBefore: txn.BalanceBefore,
			BalanceAfter:  txn.BalanceAfter,
			RelatedID:     txn.RelatedID,
			Remark:        txn.Remark,
			CreatedAt:     txn.CreatedAt,
		}
	}
	return records, total, nil
}

func typeName(txType string) string {
	switch txType {
	case models.TxTypeCommissionSettle:
		return "佣金入账"
	case models.TxTypeCommissionRollback:
		return "佣金退回"
	case models.TxTypeWithdrawFreeze:
		return "提现冻结"
	case models.TxTypeWithdrawUnfreeze:
		return "提现解冻"
	case models.TxTypeWithdrawPaid:
		return "提现到账"
	default:
		return "其他"
	}
}

// AddBalance 入账：余额与累计收入增加
func (l *Ledger) AddBalance(ctx context.Context, ch Change) (*models.Wallet, error) {
	return l.inTx(ctx, ch, l.AddBalanceTx)
}

// AddBalanceTx 在已有事务中入账，钱包不存在时创建
func (l *Ledger) AddBalanceTx(ctx context.Context, tx *gorm.DB, ch Change) (*models.Wallet, error) {
	if err := validate(ch); err != nil {
		return nil, err
	}
	wallet, err := l.GetOrCreateTx(ctx, tx, ch.MemberID, ch.TenantID)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, wallet, ch, models.AccountBalance, func(w *models.Wallet) (decimal.Decimal, decimal.Decimal, error) {
		before := w.Balance
		w.Balance = w.Balance.Add(ch.Amount)
		w.TotalIncome = w.TotalIncome.Add(ch.Amount)
		return before, w.Balance, nil
	})
}

// DeductBalance 扣减余额，允许扣成负数（退款回扣已入账佣金）
func (l *Ledger) DeductBalance(ctx context.Context, ch Change) (*models.Wallet, error) {
	return l.inTx(ctx, ch, l.DeductBalanceTx)
}

// DeductBalanceTx 在已有事务中扣减余额
func (l *Ledger) DeductBalanceTx(ctx context.Context, tx *gorm.DB, ch Change) (*models.Wallet, error) {
	if err := validate(ch); err != nil {
		return nil, err
	}
	wallet, err := l.load(ctx, tx, ch.MemberID)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, wallet, ch.negate(), models.AccountBalance, func(w *models.Wallet) (decimal.Decimal, decimal.Decimal, error) {
		before := w.Balance
		w.Balance = w.Balance.Sub(ch.Amount)
		return before, w.Balance, nil
	})
}

// Freeze 冻结：余额转入冻结
func (l *Ledger) Freeze(ctx context.Context, ch Change) (*models.Wallet, error) {
	return l.inTx(ctx, ch, l.FreezeTx)
}

// FreezeTx 在已有事务中冻结
func (l *Ledger) FreezeTx(ctx context.Context, tx *gorm.DB, ch Change) (*models.Wallet, error) {
	if err := validate(ch); err != nil {
		return nil, err
	}
	wallet, err := l.load(ctx, tx, ch.MemberID)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, wallet, ch.negate(), models.AccountBalance, func(w *models.Wallet) (decimal.Decimal, decimal.Decimal, error) {
		if w.Balance.LessThan(ch.Amount) {
			return decimal.Zero, decimal.Zero, errors.ErrBalanceInsufficient
		}
		before := w.Balance
		w.Balance = w.Balance.Sub(ch.Amount)
		w.Frozen = w.Frozen.Add(ch.Amount)
		return before, w.Balance, nil
	})
}

// Unfreeze 解冻：冻结转回余额
func (l *Ledger) Unfreeze(ctx context.Context, ch Change) (*models.Wallet, error) {
	return l.inTx(ctx, ch, l.UnfreezeTx)
}

// UnfreezeTx 在已有事务中解冻
func (l *Ledger) UnfreezeTx(ctx context.Context, tx *gorm.DB, ch Change) (*models.Wallet, error) {
	if err := validate(ch); err != nil {
		return nil, err
	}
	wallet, err := l.load(ctx, tx, ch.MemberID)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, wallet, ch, models.AccountBalance, func(w *models.Wallet) (decimal.Decimal, decimal.Decimal, error) {
		if w.Frozen.LessThan(ch.Amount) {
			return decimal.Zero, decimal.Zero, errors.ErrFrozenInsufficient
		}
		before := w.Balance
		w.Frozen = w.Frozen.Sub(ch.Amount)
		w.Balance = w.Balance.Add(ch.Amount)
		return before, w.Balance, nil
	})
}

// DeductFrozen 扣减冻结金额（打款成功后），余额不变
func (l *Ledger) DeductFrozen(ctx context.Context, ch Change) (*models.Wallet, error) {
	return l.inTx(ctx, ch, l.DeductFrozenTx)
}

// DeductFrozenTx 在已有事务中扣减冻结金额，流水记在 frozen 科目
func (l *Ledger) DeductFrozenTx(ctx context.Context, tx *gorm.DB, ch Change) (*models.Wallet, error) {
	if err := validate(ch); err != nil {
		return nil, err
	}
	wallet, err := l.load(ctx, tx, ch.MemberID)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, wallet, ch.negate(), models.AccountFrozen, func(w *models.Wallet) (decimal.Decimal, decimal.Decimal, error) {
		if w.Frozen.LessThan(ch.Amount) {
			return decimal.Zero, decimal.Zero, errors.ErrFrozenInsufficient
		}
		before := w.Frozen
		w.Frozen = w.Frozen.Sub(ch.Amount)
		return before, w.Frozen, nil
	})
}

type txFunc func(ctx context.Context, tx *gorm.DB, ch Change) (*models.Wallet, error)

func (l *Ledger) inTx(ctx context.Context, ch Change, fn txFunc) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := database.RunInTx(ctx, l.db, database.DefaultTxAttempts, nil, func(tx *gorm.DB) error {
		w, err := fn(ctx, tx, ch)
		if err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (l *Ledger) load(ctx context.Context, tx *gorm.DB, memberID int64) (*models.Wallet, error) {
	wallet, err := l.walletRepo.WithTx(tx).GetByMemberID(ctx, memberID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return wallet, nil
}

// apply 修改内存中的钱包，以读到的版本号为条件写回，并追加流水。
// ch.Amount 为流水的有符号金额。
func (l *Ledger) apply(
	ctx context.Context,
	tx *gorm.DB,
	wallet *models.Wallet,
	ch Change,
	account string,
	mutate func(w *models.Wallet) (before, after decimal.Decimal, err error),
) (*models.Wallet, error) {
	readVersion := wallet.Version

	before, after, err := mutate(wallet)
	if err != nil {
		return nil, err
	}

	rows, err := l.walletRepo.WithTx(tx).UpdateWithVersion(ctx, wallet, readVersion)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if rows == 0 {
		metrics.GetMetrics().RecordWalletConflict()
		logger.Warn("Wallet version conflict",
			logger.MemberID(wallet.MemberID),
			zap.Int64("version", readVersion),
			zap.String("type", ch.Type),
		)
		return nil, errors.ErrConcurrencyConflict
	}
	wallet.Version = readVersion + 1

	txn := &models.WalletTransaction{
		WalletID:      wallet.ID,
		MemberID:      wallet.MemberID,
		TenantID:      wallet.TenantID,
		Type:          ch.Type,
		Account:       account,
		Amount:        ch.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		RelatedID:     ch.RelatedID,
		Remark:        ch.Remark,
	}
	if err := l.txnRepo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return wallet, nil
}

func validate(ch Change) error {
	if !ch.Amount.IsPositive() {
		return errors.ErrInvalidAmount.WithMessage("记账金额必须大于 0")
	}
	if !utils.RoundMoney(ch.Amount).Equal(ch.Amount) {
		return errors.ErrInvalidAmount.WithMessage("记账金额最多两位小数")
	}
	return nil
}

func (ch Change) negate() Change {
	ch.Amount = ch.Amount.Neg()
	return ch
}
