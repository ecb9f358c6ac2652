package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeJobs struct {
	retired   atomic.Int32
	refresh   atomic.Int32
	monthly   atomic.Int32
	retireErr error
}

func (f *fakeJobs) RetireExpiredShares(context.Context) (int64, error) {
	f.retired.Add(1)
	return 2, f.retireErr
}

func (f *fakeJobs) RefreshPaidFlags(context.Context) (int64, error) {
	f.refresh.Add(1)
	return 1, nil
}

func (f *fakeJobs) ResetMonthlyFreeCredits(context.Context) (int, error) {
	f.monthly.Add(1)
	return 3, nil
}

func TestNewService(t *testing.T) {
	svc := NewService(&fakeJobs{})
	assert.NotNil(t, svc.stopChan)
	assert.Equal(t, time.Hour, svc.interval)
}

func TestService_RunHourly(t *testing.T) {
	jobs := &fakeJobs{}
	NewService(jobs).RunHourly()

	assert.Equal(t, int32(1), jobs.retired.Load())
	assert.Equal(t, int32(1), jobs.refresh.Load())
	assert.Equal(t, int32(0), jobs.monthly.Load())
}

func TestService_RunHourly_ContinuesAfterError(t *testing.T) {
	jobs := &fakeJobs{retireErr: errors.New("db down")}
	NewService(jobs).RunHourly()

	assert.Equal(t, int32(1), jobs.refresh.Load())
}

func TestService_RunMonthly(t *testing.T) {
	jobs := &fakeJobs{}
	NewService(jobs).RunMonthly()

	assert.Equal(t, int32(1), jobs.monthly.Load())
}

func TestService_TickerRunsHourlyJobs(t *testing.T) {
	jobs := &fakeJobs{}
	svc := NewService(jobs)
	svc.interval = 10 * time.Millisecond

	svc.Start()
	assert.Eventually(t, func() bool {
		return jobs.retired.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	svc.Stop()

	// 重复 Stop 不应 panic
	svc.Stop()
}

func TestService_MonthlyTimerFires(t *testing.T) {
	jobs := &fakeJobs{}
	svc := NewService(jobs)
	svc.interval = time.Hour
	// 时钟停在月末最后一刻
	svc.now = func() time.Time {
		return time.Date(2024, 1, 31, 23, 59, 59, 990_000_000, time.UTC)
	}

	svc.Start()
	assert.Eventually(t, func() bool {
		return jobs.monthly.Load() >= 1
	}, time.Second, 5*time.Millisecond)
	svc.Stop()
}

func TestNextMonthStart(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, nextMonthStart(tt.now))
	}
}
