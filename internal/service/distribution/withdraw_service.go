package distribution

import (
	"context"
	stderrors "errors"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/common/crypto"
	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/common/errors"
	"github.com/dumeirei/referral-settlement/internal/common/idgen"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/utils"
	"github.com/dumeirei/referral-settlement/internal/models"
	"github.com/dumeirei/referral-settlement/internal/repository"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
)

// DefaultMinWithdrawAmount 默认最低提现金额
var DefaultMinWithdrawAmount = decimal.NewFromInt(10)

// WithdrawService 会员提现申请服务
type WithdrawService struct {
	db             *gorm.DB
	withdrawalRepo *repository.WithdrawalRepository
	ledger         *wallet.Ledger
	minAmount      decimal.Decimal
	methods        []string
	cipher         *crypto.AES
}

// NewWithdrawService 创建提现服务
func NewWithdrawService(db *gorm.DB, withdrawalRepo *repository.WithdrawalRepository, ledger *wallet.Ledger, cfg *config.WithdrawalConfig) *WithdrawService {
	s := &WithdrawService{
		db:             db,
		withdrawalRepo: withdrawalRepo,
		ledger:         ledger,
		minAmount:      DefaultMinWithdrawAmount,
		methods:        []string{models.WithdrawMethodWechat},
	}
	if cfg != nil {
		if cfg.MinAmount > 0 {
			s.minAmount = decimal.NewFromFloat(cfg.MinAmount)
		}
		if len(cfg.Methods) > 0 {
			s.methods = cfg.Methods
		}
	}
	return s
}

// SetAccountCipher 设置收款账户加密器，未设置时不保存收款账户
func (s *WithdrawService) SetAccountCipher(c *crypto.AES) {
	s.cipher = c
}

// ApplyRequest 提现申请
type ApplyRequest struct {
	MemberID    int64
	TenantID    int64
	Amount      decimal.Decimal
	Method      string
	AccountInfo string
}

// Apply 申请提现：校验后在同一事务中冻结金额并创建待审核记录
func (s *WithdrawService) Apply(ctx context.Context, req *ApplyRequest) (*models.Withdrawal, error) {
	if !slices.Contains(s.methods, req.Method) {
		return nil, errors.ErrWithdrawMethod
	}
	if !req.Amount.IsPositive() || !utils.RoundMoney(req.Amount).Equal(req.Amount) {
		return nil, errors.ErrInvalidAmount
	}
	if req.Amount.LessThan(s.minAmount) {
		return nil, errors.ErrWithdrawBelowMin.WithMessage("最低提现金额为 " + s.minAmount.StringFixed(2) + " 元")
	}

	accountInfo, err := s.encryptAccount(req.AccountInfo)
	if err != nil {
		return nil, err
	}

	withdrawal := &models.Withdrawal{
		WithdrawalNo: idgen.NextNo(),
		TenantID:     req.TenantID,
		MemberID:     req.MemberID,
		Amount:       req.Amount,
		Method:       req.Method,
		AccountInfo:  accountInfo,
		Status:       models.WithdrawalStatusPending,
	}

	err = database.RunInTx(ctx, s.db, database.DefaultTxAttempts, nil, func(tx *gorm.DB) error {
		w := *withdrawal
		if err := s.withdrawalRepo.WithTx(tx).Create(ctx, &w); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}

		_, err := s.ledger.FreezeTx(ctx, tx, wallet.Change{
			MemberID:  req.MemberID,
			TenantID:  req.TenantID,
			Amount:    req.Amount,
			Type:      models.TxTypeWithdrawFreeze,
			RelatedID: &w.ID,
			Remark:    "提现冻结 " + w.WithdrawalNo,
		})
		if err != nil {
			if stderrors.Is(err, errors.ErrWalletNotFound) {
				return errors.ErrBalanceInsufficient
			}
			return err
		}

		*withdrawal = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Withdrawal applied",
		logger.MemberID(req.MemberID),
		logger.WithdrawalNo(withdrawal.WithdrawalNo),
		logger.Amount(req.Amount),
		zap.String("method", req.Method),
	)
	s.maskAccount(withdrawal)
	return withdrawal, nil
}

// List 分页获取会员自己的提现记录
func (s *WithdrawService) List(ctx context.Context, memberID int64, offset, limit int) ([]*models.Withdrawal, int64, error) {
	list, total, err := s.withdrawalRepo.ListByMember(ctx, memberID, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	for _, w := range list {
		s.maskAccount(w)
	}
	return list, total, nil
}

func (s *WithdrawService) encryptAccount(account string) (string, error) {
	if account == "" || s.cipher == nil {
		return "", nil
	}
	enc, err := s.cipher.Encrypt(account)
	if err != nil {
		return "", errors.ErrInternalError.WithError(err)
	}
	return enc, nil
}

// maskAccount 解密收款账户并填充脱敏展示值，解密失败只记日志
func (s *WithdrawService) maskAccount(w *models.Withdrawal) {
	if w.AccountInfo == "" || s.cipher == nil {
		return
	}
	plain, err := s.cipher.Decrypt(w.AccountInfo)
	if err != nil {
		logger.Warn("Failed to decrypt withdrawal account",
			logger.WithdrawalNo(w.WithdrawalNo),
			zap.Error(err),
		)
		return
	}
	w.AccountMasked = crypto.MaskAccount(plain, 4)
}
