package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

// Limiter 按 key 的固定窗口限流
//
// 多实例部署时计数放在 Redis；未配置 Redis 或 Redis 不可用时
// 退化为进程内令牌桶，各实例分别计数。
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration

	mu    sync.Mutex
	local map[string]*rate.Limiter
	now   func() time.Time
}

func New(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		local:  make(map[string]*rate.Limiter),
		now:    time.Now,
	}
}

// Allow 计入一次请求，返回是否放行以及建议的等待时间
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}

	if l.client != nil {
		allowed, retryAfter, err := l.allowRedis(ctx, key)
		if err == nil {
			return allowed, retryAfter
		}
		slog.Warn("redis rate limit unavailable, using local limiter", "key", key, "error", err)
	}

	return l.allowLocal(key)
}

func (l *Limiter) allowRedis(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	bucket := now.UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	if incr.Val() > int64(l.limit) {
		windowEnd := time.Unix(0, (bucket+1)*int64(l.window))
		return false, windowEnd.Sub(now), nil
	}
	return true, 0, nil
}

func (l *Limiter) allowLocal(key string) (bool, time.Duration) {
	l.mu.Lock()
	lim, ok := l.local[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
		l.local[key] = lim
	}
	l.mu.Unlock()

	now := l.now()
	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}
