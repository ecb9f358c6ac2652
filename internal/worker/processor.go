package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qs3c/codemorph_server/internal/pkg/queue"
	"github.com/qs3c/codemorph_server/internal/service"
)

const (
	defaultMaxAttempts = 5
	popTimeout         = 5 * time.Second
)

// PaymentApplier 将支付记入账本
type PaymentApplier interface {
	Apply(ctx context.Context, msg *queue.PaymentMessage) (*service.GrantResult, error)
}

// PaymentProcessor 支付队列消费者
type PaymentProcessor struct {
	payments    PaymentApplier
	retry       *queue.Queue[queue.PaymentMessage]
	maxAttempts int
	popTimeout  time.Duration
}

// NewPaymentProcessor 创建支付处理器，retry 为 nil 时失败不重新入队
func NewPaymentProcessor(payments PaymentApplier, retry *queue.Queue[queue.PaymentMessage]) *PaymentProcessor {
	return &PaymentProcessor{
		payments:    payments,
		retry:       retry,
		maxAttempts: defaultMaxAttempts,
		popTimeout:  popTimeout,
	}
}

// Process 处理一条支付消息
//
// 入账按支付 ID 幂等，重复投递安全。并发冲突和存储错误会重新入队，
// 参数类错误直接丢弃。
func (p *PaymentProcessor) Process(ctx context.Context, msg *queue.PaymentMessage) error {
	result, err := p.payments.Apply(ctx, msg)
	if err != nil {
		if service.IsLedgerFatal(err) && p.retry != nil && msg.Attempts+1 < p.maxAttempts {
			msg.Attempts++
			if pushErr := p.retry.Push(ctx, msg); pushErr != nil {
				return fmt.Errorf("requeue payment %s: %w", msg.PaymentID, pushErr)
			}
			slog.Warn("payment requeued",
				"payment_id", msg.PaymentID,
				"user_id", msg.UserID,
				"attempts", msg.Attempts,
				"error", err,
			)
			return nil
		}
		return fmt.Errorf("apply payment %s: %w", msg.PaymentID, err)
	}

	if result.Duplicate {
		slog.Info("payment already applied", "payment_id", msg.PaymentID, "user_id", msg.UserID)
		return nil
	}

	slog.Info("payment applied",
		"payment_id", msg.PaymentID,
		"user_id", msg.UserID,
		"grant_id", result.Grant.ID,
		"credits", result.Grant.InitialCredits,
	)
	return nil
}

// Run 循环消费队列直到 ctx 取消
func (p *PaymentProcessor) Run(ctx context.Context, workerID int, q *queue.Queue[queue.PaymentMessage]) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("payment worker shutting down", "worker", workerID)
			return
		default:
		}

		msg, err := q.Pop(ctx, p.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to pop payment", "worker", workerID, "error", err)
			continue
		}
		if msg == nil {
			continue
		}

		if err := p.Process(ctx, msg); err != nil {
			slog.Error("payment failed", "worker", workerID, "payment_id", msg.PaymentID, "error", err)
		}
	}
}
