package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// PaymentMessage 待入账的支付
type PaymentMessage struct {
	PaymentID    string    `json:"payment_id"`
	UserID       int64     `json:"user_id"`
	Credits      int       `json:"credits"`
	Plan         string    `json:"plan"`
	DurationDays int       `json:"duration_days"`
	ReceivedAt   time.Time `json:"received_at"`
	Attempts     int       `json:"attempts,omitempty"`
}

// ReconcileMessage 转换已完成但扣费失败，等待人工对账
type ReconcileMessage struct {
	UserID         int64     `json:"user_id"`
	Cost           int       `json:"cost"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	Error          string    `json:"error"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Queue 基于 Redis List 的 FIFO 队列
type Queue[T any] struct {
	client    *redis.Client
	queueName string
}

func NewQueue[T any](client *redis.Client, queueName string) *Queue[T] {
	return &Queue[T]{
		client:    client,
		queueName: queueName,
	}
}

// Name 队列名
func (q *Queue[T]) Name() string {
	return q.queueName
}

// Push 加入队列
func (q *Queue[T]) Push(ctx context.Context, msg *T) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 从队列获取消息（阻塞），超时返回 nil, nil
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (*T, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	return decode[T](result[1])
}

// TryPop 非阻塞获取，队列为空返回 nil, nil
func (q *Queue[T]) TryPop(ctx context.Context) (*T, error) {
	raw, err := q.client.RPop(ctx, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}
	return decode[T](raw)
}

// Peek 按入队顺序查看最多 limit 条消息，不出队
func (q *Queue[T]) Peek(ctx context.Context, limit int64) ([]*T, error) {
	raws, err := q.client.LRange(ctx, q.queueName, -limit, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}

	msgs := make([]*T, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		msg, err := decode[T](raws[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Length 获取队列长度
func (q *Queue[T]) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}

func decode[T any](raw string) (*T, error) {
	var msg T
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}
