package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/queue"
	"github.com/qs3c/codemorph_server/internal/repository"
)

var ErrInvalidPayment = errors.New("支付信息无效")

// PaymentService 支付回调入账与购买记录
type PaymentService struct {
	ledger    *LedgerService
	grantRepo *repository.PurchasedCreditRepository
	queue     *queue.Queue[queue.PaymentMessage]
	cfg       *config.Config
}

func NewPaymentService(ledger *LedgerService, grantRepo *repository.PurchasedCreditRepository, cfg *config.Config) *PaymentService {
	return &PaymentService{
		ledger:    ledger,
		grantRepo: grantRepo,
		cfg:       cfg,
	}
}

// SetQueue 设置支付队列，未设置时回调直接入账
func (s *PaymentService) SetQueue(q *queue.Queue[queue.PaymentMessage]) {
	s.queue = q
}

// HandleWebhook 处理支付回调
func (s *PaymentService) HandleWebhook(ctx context.Context, req *dto.PaymentWebhookRequest) (*dto.PaymentWebhookResponse, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" || req.UserID <= 0 {
		return nil, ErrInvalidPayment
	}

	msg := &queue.PaymentMessage{
		PaymentID:    paymentID,
		UserID:       req.UserID,
		Credits:      req.Credits,
		Plan:         req.Plan,
		DurationDays: req.DurationDays,
		ReceivedAt:   time.Now().UTC(),
	}
	if msg.Credits <= 0 {
		msg.Credits = s.cfg.Credits.PlanCredits
	}

	if s.queue != nil {
		if err := s.queue.Push(ctx, msg); err != nil {
			return nil, err
		}
		slog.Info("payment queued", "payment_id", paymentID, "user_id", req.UserID, "credits", msg.Credits)
		return &dto.PaymentWebhookResponse{Status: "queued"}, nil
	}

	result, err := s.Apply(ctx, msg)
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		return &dto.PaymentWebhookResponse{Status: "duplicate"}, nil
	}
	return &dto.PaymentWebhookResponse{Status: "applied", GrantID: result.Grant.ID}, nil
}

// Apply 将一条支付记入账本，支付 ID 即幂等键
func (s *PaymentService) Apply(ctx context.Context, msg *queue.PaymentMessage) (*GrantResult, error) {
	return s.ledger.GrantPurchasedCredits(ctx, &GrantRequest{
		UserID:         msg.UserID,
		Amount:         msg.Credits,
		Plan:           msg.Plan,
		DurationDays:   msg.DurationDays,
		IdempotencyKey: msg.PaymentID,
		PaymentID:      msg.PaymentID,
	})
}

// History 购买记录
func (s *PaymentService) History(ctx context.Context, userID int64) (*dto.PaymentHistory, error) {
	grants, err := s.grantRepo.WithContext(ctx).ListByUser(userID)
	if err != nil {
		return nil, err
	}

	now := s.ledger.Now()
	history := &dto.PaymentHistory{
		CurrentPlan:   "free",
		PurchaseCount: len(grants),
		Items:         make([]*dto.PaymentItem, 0, len(grants)),
	}

	var soonestEnd time.Time
	for _, g := range grants {
		active := g.ActiveAt(now)
		if active && (soonestEnd.IsZero() || g.EndDate.Before(soonestEnd)) {
			soonestEnd = g.EndDate
			history.CurrentPlan = g.PlanType
		}
		history.Items = append(history.Items, &dto.PaymentItem{
			ID:               g.ID,
			PlanType:         g.PlanType,
			InitialCredits:   g.InitialCredits,
			RemainingCredits: g.RemainingCredits,
			StartDate:        g.StartDate.UTC().Format(time.RFC3339),
			EndDate:          g.EndDate.UTC().Format(time.RFC3339),
			Active:           active,
			CreatedAt:        g.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return history, nil
}
