package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
)

const (
	ChannelLedgerEvents = "ledger_events"
)

// 事件类型
const (
	EventCreditsUpdated = "credits_updated"
	EventShareReceived  = "share_received"
)

// LedgerEvent 账本变动通知，提交后发布
type LedgerEvent struct {
	Type        string    `json:"type"`
	UserID      int64     `json:"user_id"`
	Kind        string    `json:"kind"`
	Source      string    `json:"source,omitempty"`
	Amount      int       `json:"amount"`
	GrantID     string    `json:"grant_id,omitempty"`
	OwnerUserID int64     `json:"owner_user_id,omitempty"`
	Remaining   *int      `json:"remaining,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishLedgerEvent 发布账本事件
func (p *Publisher) PublishLedgerEvent(ctx context.Context, evt *LedgerEvent) error {
	if evt.Type == "" {
		evt.Type = EventCreditsUpdated
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	return p.client.Publish(ctx, ChannelLedgerEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// errChannelClosed 订阅通道被关闭（连接断开）
var errChannelClosed = errors.New("subscription channel closed")

// Run 持续订阅，断线后指数退避重连，直到 ctx 取消
func (s *Subscriber) Run(ctx context.Context, handler func(*LedgerEvent)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second

	for {
		started := time.Now()
		err := s.Subscribe(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// 稳定运行过一段时间则重新计算退避
		if time.Since(started) > bo.MaxInterval {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		slog.Warn("ledger event subscription lost, reconnecting", "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Subscribe 订阅账本事件，阻塞直到 ctx 取消或连接断开
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*LedgerEvent)) error {
	ps := s.client.Subscribe(ctx, ChannelLedgerEvents)
	defer ps.Close()

	// 等待订阅确认
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errChannelClosed
			}

			var evt LedgerEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue // 忽略解析错误
			}

			handler(&evt)
		}
	}
}
