// worker 消费订单事件、执行佣金结算与提现对账
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/bootstrap"
	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/mq"
	"github.com/dumeirei/referral-settlement/internal/queue"
	"github.com/dumeirei/referral-settlement/internal/scheduler"
)

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
		logger.Error("worker exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.GetLogger().With(zap.String("component", "worker"))
	log.Info("Starting worker", zap.String("mode", cfg.Server.Mode))

	infra, err := bootstrap.OpenInfra(cfg, "worker")
	if err != nil {
		return err
	}
	defer infra.Close()

	payer, err := bootstrap.NewPayer(&cfg.WeChatPay)
	if err != nil {
		return err
	}
	services, err := bootstrap.NewServices(cfg, infra.DB, payer)
	if err != nil {
		return err
	}

	mqClient, err := mq.Dial(cfg.RabbitMQ.URL())
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer mqClient.Close()

	producer := queue.NewProducer(mqClient, cfg.RabbitMQ.Exchange)
	consumers := []*queue.Consumer{
		queue.NewOrderPaidConsumer(queue.OrderPaidTopology(&cfg.RabbitMQ), producer, services.Commission),
		queue.NewOrderRefundedConsumer(queue.OrderRefundedTopology(&cfg.RabbitMQ), producer, services.Commission),
	}
	for _, c := range consumers {
		if err := mqClient.Declare(c.Topology()); err != nil {
			return fmt.Errorf("declare %s: %w", c.Topology().Queue, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// 任一消费者异常退出时整体停止，由编排系统重启
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	hostname, _ := os.Hostname()
	var wg sync.WaitGroup
	for _, c := range consumers {
		opts := c.Options(hostname+"-"+c.Topology().Queue, cfg.RabbitMQ.PrefetchCount)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Consumer started", zap.String("queue", opts.Queue))
			if err := mqClient.Consume(ctx, opts); err != nil && ctx.Err() == nil {
				cancel(fmt.Errorf("consumer %s: %w", opts.Queue, err))
			}
		}()
	}

	sched := scheduler.NewScheduler()
	scheduler.NewTaskHandler(infra.Redis, services.Settlement, services.Audit, &cfg.Settlement).Register(sched)
	sched.Start()

	<-ctx.Done()
	log.Info("Shutting down")
	sched.Stop()
	cancel(nil)
	wg.Wait()

	if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
		return cause
	}
	log.Info("Worker exited")
	return nil
}
