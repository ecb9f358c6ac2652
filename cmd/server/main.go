package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/api"
	"github.com/qs3c/codemorph_server/internal/api/handler"
	"github.com/qs3c/codemorph_server/internal/api/middleware"
	"github.com/qs3c/codemorph_server/internal/database"
	"github.com/qs3c/codemorph_server/internal/pkg/cron"
	"github.com/qs3c/codemorph_server/internal/pkg/email"
	"github.com/qs3c/codemorph_server/internal/pkg/logger"
	"github.com/qs3c/codemorph_server/internal/pkg/metrics"
	"github.com/qs3c/codemorph_server/internal/pkg/oauth"
	"github.com/qs3c/codemorph_server/internal/pkg/pubsub"
	"github.com/qs3c/codemorph_server/internal/pkg/queue"
	"github.com/qs3c/codemorph_server/internal/pkg/ratelimit"
	"github.com/qs3c/codemorph_server/internal/pkg/upstream"
	"github.com/qs3c/codemorph_server/internal/pkg/ws"
	"github.com/qs3c/codemorph_server/internal/repository"
	"github.com/qs3c/codemorph_server/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
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
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info("database connected", "driver", cfg.Database.Driver)

	// 初始化 Redis（可选，单实例开发环境可以不配）
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, running single-instance mode", "error", err)
			rdb = nil
		} else {
			log.Info("redis connected")
		}
	}

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()
	metrics.RegisterWSConnections(wsHub.ConnectionCount)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	grantRepo := repository.NewPurchasedCreditRepository(db)
	shareRepo := repository.NewSharedCreditRepository(db)
	txRepo := repository.NewTransactionRepository(db)

	// 初始化 Service
	ledger := service.NewLedgerService(db, userRepo, grantRepo, shareRepo, txRepo, cfg)
	balance := service.NewBalanceService(userRepo, grantRepo, shareRepo, txRepo)
	authService := service.NewAuthService(userRepo, cfg)
	userService := service.NewUserService(userRepo, ledger)
	shareService := service.NewShareService(userRepo, grantRepo, shareRepo, txRepo)
	paymentService := service.NewPaymentService(ledger, grantRepo, cfg)
	txService := service.NewTransactionService(txRepo)
	convertService := service.NewConvertService(ledger, balance,
		upstream.NewClient(cfg.Conversion.Endpoint, cfg.Conversion.APIKey, cfg.Conversion.Timeout), cfg)

	mailer := email.NewService(&cfg.Email)
	if mailer.Enabled() {
		authService.SetMailer(mailer)
		ledger.SetNotifier(mailer)
	}

	var (
		stateStore *oauth.StateStore
		subscriber *pubsub.Subscriber
	)
	if rdb != nil {
		ledger.SetPublisher(pubsub.NewPublisher(rdb))
		subscriber = pubsub.NewSubscriber(rdb)
		stateStore = oauth.NewStateStore(rdb)
		paymentService.SetQueue(queue.NewQueue[queue.PaymentMessage](rdb, cfg.Queue.PaymentQueue))
		convertService.SetReconcileQueue(queue.NewQueue[queue.ReconcileMessage](rdb, cfg.Queue.ReconcileQueue))
	} else {
		ledger.SetPublisher(wsHub)
	}

	var convertLimit middleware.Limiter
	if cfg.RateLimit.ConvertPerMinute > 0 {
		convertLimit = ratelimit.New(rdb, "codemorph:ratelimit:convert", cfg.RateLimit.ConvertPerMinute, time.Minute)
	}

	// 初始化 Router
	router := api.NewRouter(api.Handlers{
		Auth:        handler.NewAuthHandler(authService, stateStore),
		User:        handler.NewUserHandler(userService),
		Convert:     handler.NewConvertHandler(convertService),
		Dashboard:   handler.NewDashboardHandler(balance),
		Transaction: handler.NewTransactionHandler(txService),
		Share:       handler.NewShareHandler(ledger, shareService),
		Payment:     handler.NewPaymentHandler(paymentService, ledger),
		WebSocket:   handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins),
	}, convertLimit, log, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	jobs := cron.NewService(ledger)
	jobs.Start()
	defer jobs.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if subscriber != nil {
		g.Go(func() error {
			err := subscriber.Run(ctx, wsHub.ForwardLedgerEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		wsHub.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}

	log.Info("server stopped")
	return err
}
