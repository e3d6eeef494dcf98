// Package bootstrap 组装 api-gateway 与 worker 共用的基础设施和服务
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/common/crypto"
	"github.com/dumeirei/referral-settlement/internal/common/database"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/tracing"
	"github.com/dumeirei/referral-settlement/internal/repository"
	"github.com/dumeirei/referral-settlement/internal/service/distribution"
	"github.com/dumeirei/referral-settlement/internal/service/finance"
	"github.com/dumeirei/referral-settlement/internal/service/wallet"
	"github.com/dumeirei/referral-settlement/pkg/wechatpay"
)

// Services 业务服务集合
type Services struct {
	Ledger     *wallet.Ledger
	Resolver   *distribution.ReferralResolver
	Commission *distribution.CommissionService
	Withdraw   *distribution.WithdrawService
	Settlement *finance.SettlementService
	Audit      *finance.WithdrawalAuditService
}

// NewServices 按配置创建全部业务服务
func NewServices(cfg *config.Config, db *gorm.DB, payer wechatpay.Payer) (*Services, error) {
	memberRepo := repository.NewMemberRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)

	ledger := wallet.NewLedger(db, repository.NewWalletRepository(db), repository.NewWalletTransactionRepository(db))

	maxDepth := cfg.Business.Distribution.MaxReferralDepth
	if maxDepth <= 0 {
		maxDepth = distribution.DefaultMaxReferralDepth
	}
	resolver := distribution.NewReferralResolver(db, memberRepo, maxDepth)

	commissionSvc := distribution.NewCommissionService(
		db,
		repository.NewOrderRepository(db),
		memberRepo,
		repository.NewDistributionRepository(db),
		commissionRepo,
		ledger,
		resolver,
	)
	commissionSvc.SetDefaults(distribution.RulesFromConfig(&cfg.Business.Distribution), cfg.Business.Distribution.SettleDelay())
	commissionSvc.SetTxOptions(database.RepeatableRead())

	withdrawSvc := distribution.NewWithdrawService(db, withdrawalRepo, ledger, &cfg.Business.Withdrawal)
	if key := cfg.Business.Withdrawal.AccountKey; key != "" {
		cipher, err := crypto.NewAES(key)
		if err != nil {
			return nil, fmt.Errorf("init withdrawal account cipher: %w", err)
		}
		withdrawSvc.SetAccountCipher(cipher)
	}

	return &Services{
		Ledger:     ledger,
		Resolver:   resolver,
		Commission: commissionSvc,
		Withdraw:   withdrawSvc,
		Settlement: finance.NewSettlementService(db, commissionRepo, ledger, cfg.Settlement.BatchSize),
		Audit:      finance.NewWithdrawalAuditService(db, withdrawalRepo, memberRepo, ledger, payer),
	}, nil
}

// NewPayer 创建打款客户端，mock 模式下不会真实打款
func NewPayer(cfg *config.WeChatPayConfig) (wechatpay.Payer, error) {
	if cfg.Mock {
		logger.Warn("WeChat Pay running in mock mode, payouts are simulated")
		return wechatpay.NewMockClient(), nil
	}

	client, err := wechatpay.NewClient(&wechatpay.Config{
		AppID:          cfg.AppID,
		MchID:          cfg.MchID,
		APIv3Key:       cfg.APIv3Key,
		SerialNo:       cfg.SerialNo,
		PrivateKeyPath: cfg.PrivateKeyPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init wechatpay client: %w", err)
	}
	return client, nil
}

// InitTracing 初始化链路追踪，失败时降级为不追踪
func InitTracing(cfg *config.Config, serviceName string) *tracing.Provider {
	name := cfg.Tracing.ServiceName
	if serviceName != "" {
		name = name + "-" + serviceName
	}

	provider, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: name,
		Environment: cfg.Server.Mode,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Warn("Failed to init tracing, continuing without it", zap.Error(err))
		return nil
	}
	return provider
}
