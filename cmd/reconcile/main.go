package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/database"
	"github.com/qs3c/codemorph_server/internal/pkg/logger"
	"github.com/qs3c/codemorph_server/internal/pkg/oss"
	"github.com/qs3c/codemorph_server/internal/pkg/queue"
	"github.com/qs3c/codemorph_server/internal/repository"
	"github.com/qs3c/codemorph_server/internal/service"
)

var (
	drain   = flag.Bool("drain", false, "Remove pending unbilled conversions from the reconcile queue after reporting them")
	upload  = flag.Bool("upload", false, "Upload the JSON report to OSS")
	limit   = flag.Int64("limit", 1000, "Max reconcile queue messages to include")
	timeout = flag.Duration("timeout", 10*time.Minute, "Overall timeout")
)

// report 对账报告：余额核对结果加上待补扣的转换
type report struct {
	*service.ReconcileReport
	Unbilled []*queue.ReconcileMessage `json:"unbilled"`
}

func main() {
	flag.Parse()

	code, err := run()
	if err != nil {
		slog.Error("reconcile failed", "error", err)
		os.Exit(1)
	}
	os.Exit(code)
}

// run 有差异或待补扣记录时返回 2，便于定时任务告警
func run() (int, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return 0, fmt.Errorf("connect database: %w", err)
	}

	checker := service.NewReconcileService(
		repository.NewPurchasedCreditRepository(db),
		repository.NewTransactionRepository(db),
	)
	checked, err := checker.Check(ctx)
	if err != nil {
		return 0, fmt.Errorf("check grants: %w", err)
	}

	out := &report{ReconcileReport: checked, Unbilled: []*queue.ReconcileMessage{}}

	if cfg.Redis.Host != "" {
		// 出队中途失败时已取出的消息照常输出
		unbilled, err := collectUnbilled(ctx, cfg)
		if err != nil {
			log.Error("read reconcile queue failed", "error", err)
		}
		if unbilled != nil {
			out.Unbilled = unbilled
		}
	} else if *drain {
		log.Warn("redis not configured, nothing to drain")
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, err
	}
	fmt.Println(string(data))

	log.Info("reconcile finished",
		"grants_checked", out.GrantsChecked,
		"discrepancies", len(out.Discrepancies),
		"unbilled", len(out.Unbilled),
	)

	if *upload {
		client, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			return 0, fmt.Errorf("init oss: %w", err)
		}
		key, err := client.UploadReport(out.GeneratedAt, data)
		if err != nil {
			return 0, err
		}
		log.Info("report uploaded", "key", key, "url", client.GetURL(key))
	}

	if !out.OK() || len(out.Unbilled) > 0 {
		return 2, nil
	}
	return 0, nil
}

// collectUnbilled 读取对账队列；drain 时出队，否则只查看
func collectUnbilled(ctx context.Context, cfg *config.Config) ([]*queue.ReconcileMessage, error) {
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	q := queue.NewQueue[queue.ReconcileMessage](rdb, cfg.Queue.ReconcileQueue)

	if !*drain {
		return q.Peek(ctx, *limit)
	}

	msgs := []*queue.ReconcileMessage{}
	for int64(len(msgs)) < *limit {
		msg, err := q.TryPop(ctx)
		if err != nil {
			return msgs, err
		}
		if msg == nil {
			break
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
