package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LedgerJobs 定时任务依赖的账本维护操作
type LedgerJobs interface {
	RetireExpiredShares(ctx context.Context) (int64, error)
	RefreshPaidFlags(ctx context.Context) (int64, error)
	ResetMonthlyFreeCredits(ctx context.Context) (int, error)
}

type Service struct {
	jobs     LedgerJobs
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(jobs LedgerJobs) *Service {
	return &Service{
		jobs:     jobs,
		interval: time.Hour,
		timeout:  5 * time.Minute,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	s.wg.Add(2)
	go s.runHourly()
	go s.runMonthly()
	slog.Info("cron service started", "hourly_interval", s.interval)
}

// Stop 停止定时任务并等待正在执行的任务结束
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	slog.Info("cron service stopped")
}

func (s *Service) runHourly() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunHourly()
		}
	}
}

// runMonthly 每月 1 日 00:00 UTC 重置免费积分
func (s *Service) runMonthly() {
	defer s.wg.Done()

	timer := time.NewTimer(nextMonthStart(s.now()).Sub(s.now()))
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-timer.C:
			s.RunMonthly()
			timer.Reset(nextMonthStart(s.now()).Sub(s.now()))
		}
	}
}

// RunHourly 释放过期共享并刷新付费标记
func (s *Service) RunHourly() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	retired, err := s.jobs.RetireExpiredShares(ctx)
	if err != nil {
		slog.Error("retire expired shares failed", "error", err)
	} else if retired > 0 {
		slog.Info("expired shares retired", "count", retired)
	}

	changed, err := s.jobs.RefreshPaidFlags(ctx)
	if err != nil {
		slog.Error("refresh paid flags failed", "error", err)
	} else if changed > 0 {
		slog.Info("paid flags refreshed", "changed", changed)
	}
}

// RunMonthly 重置每月免费积分
func (s *Service) RunMonthly() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	slog.Info("monthly free credit reset started")
	n, err := s.jobs.ResetMonthlyFreeCredits(ctx)
	if err != nil {
		slog.Error("monthly free credit reset failed", "topped_up", n, "error", err)
		return
	}
	slog.Info("monthly free credit reset completed", "topped_up", n)
}

func nextMonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
