// api-gateway 会员与运营后台 HTTP 接口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/bootstrap"
	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/mq"
	"github.com/dumeirei/referral-settlement/internal/models"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "配置文件路径，默认查找 ./configs/config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("api gateway exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.GetLogger().With(zap.String("component", "api"))
	log.Info("Starting api gateway", zap.String("mode", cfg.Server.Mode), zap.Int("port", cfg.Server.Port))

	infra, err := bootstrap.OpenInfra(cfg, "api")
	if err != nil {
		return err
	}
	defer infra.Close()

	if err := infra.DB.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	payer, err := bootstrap.NewPayer(&cfg.WeChatPay)
	if err != nil {
		return err
	}
	services, err := bootstrap.NewServices(cfg, infra.DB, payer)
	if err != nil {
		return err
	}

	// 消息队列仅用于运维重算，不可用时网关照常启动
	var mqClient *mq.Client
	if client, err := mq.Dial(cfg.RabbitMQ.URL()); err != nil {
		log.Warn("RabbitMQ unavailable, commission recalculation disabled", zap.Error(err))
	} else {
		mqClient = client
		defer mqClient.Close()
	}

	gin.SetMode(cfg.GinMode())
	engine := gin.New()
	setupRouter(engine, cfg, log, infra.DB, infra.Redis, services, mqClient)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}
