package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/database"
	"github.com/qs3c/codemorph_server/internal/pkg/logger"
	"github.com/qs3c/codemorph_server/internal/pkg/pubsub"
	"github.com/qs3c/codemorph_server/internal/pkg/queue"
	"github.com/qs3c/codemorph_server/internal/repository"
	"github.com/qs3c/codemorph_server/internal/service"
	"github.com/qs3c/codemorph_server/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Log.Level)

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connected", "driver", cfg.Database.Driver)

	// 支付队列必须有 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	log.Info("redis connected")

	userRepo := repository.NewUserRepository(db)
	grantRepo := repository.NewPurchasedCreditRepository(db)
	shareRepo := repository.NewSharedCreditRepository(db)
	txRepo := repository.NewTransactionRepository(db)

	ledger := service.NewLedgerService(db, userRepo, grantRepo, shareRepo, txRepo, cfg)
	ledger.SetPublisher(pubsub.NewPublisher(rdb))
	payments := service.NewPaymentService(ledger, grantRepo, cfg)

	paymentQueue := queue.NewQueue[queue.PaymentMessage](rdb, cfg.Queue.PaymentQueue)
	processor := worker.NewPaymentProcessor(payments, paymentQueue)

	// 创建 context 用于优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", "queue", paymentQueue.Name(), "max_workers", cfg.Queue.MaxWorkers)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processor.Run(ctx, workerID, paymentQueue)
		}(i)
	}

	wg.Wait()
	log.Info("worker shutdown complete")
	return nil
}
