package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/metrics"
	"github.com/qs3c/codemorph_server/internal/pkg/queue"
	"github.com/qs3c/codemorph_server/internal/pkg/upstream"
)

var (
	ErrMissingCode          = errors.New("缺少待转换的代码")
	ErrMissingLanguage      = errors.New("缺少源语言或目标语言")
	ErrSourceTooLarge       = errors.New("代码长度超出限制")
	ErrUpgradeRequired      = errors.New("该语言需要升级到付费套餐")
	ErrConversionFailed     = errors.New("代码转换失败，积分未扣除")
	ErrConverterUnavailable = errors.New("转换服务未配置")
)

const (
	BillingCharged               = "charged"
	BillingPendingReconciliation = "pending_reconciliation"
)

// Converter 转换后端
type Converter interface {
	Convert(ctx context.Context, req *upstream.ConvertRequest) (*upstream.ConvertResult, error)
}

// ReconcilePusher 待对账事件入队
type ReconcilePusher interface {
	Push(ctx context.Context, msg *queue.ReconcileMessage) error
}

type ConvertService struct {
	ledger    *LedgerService
	balance   *BalanceService
	converter Converter
	reconcile ReconcilePusher
	cfg       *config.Config
}

func NewConvertService(ledger *LedgerService, balance *BalanceService, converter Converter, cfg *config.Config) *ConvertService {
	return &ConvertService{
		ledger:    ledger,
		balance:   balance,
		converter: converter,
		cfg:       cfg,
	}
}

// SetReconcileQueue 扣费失败时写入的对账队列，为 nil 时只记日志
func (s *ConvertService) SetReconcileQueue(q ReconcilePusher) {
	s.reconcile = q
}

// Languages 免费与付费语言列表
func (s *ConvertService) Languages() *dto.LanguagesResponse {
	return &dto.LanguagesResponse{
		Free: s.cfg.Conversion.FreeLanguages,
		Paid: s.cfg.Conversion.PaidLanguages,
	}
}

// Convert 先完成转换再扣费
//
// 转换失败不扣费；扣费时积分不足则不返回结果；
// 账本内部错误时结果照常返回，记为待对账。
func (s *ConvertService) Convert(ctx context.Context, userID int64, req *dto.ConvertRequest) (*dto.ConvertResponse, error) {
	source := strings.ToLower(strings.TrimSpace(req.SourceLanguage))
	target := strings.ToLower(strings.TrimSpace(req.TargetLanguage))

	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrMissingCode
	}
	if source == "" || target == "" {
		return nil, ErrMissingLanguage
	}
	if limit := s.cfg.Conversion.MaxSourceBytes; limit > 0 && len(req.Code) > limit {
		return nil, ErrSourceTooLarge
	}

	if !s.cfg.Conversion.IsFreeLanguage(source) || !s.cfg.Conversion.IsFreeLanguage(target) {
		paid, err := s.ledger.HasPaidAccess(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !paid {
			metrics.ConvertRequests.WithLabelValues("upgrade_required").Inc()
			return nil, ErrUpgradeRequired
		}
	}

	cost := s.cfg.Conversion.Cost

	// 预检查只用于快速失败，真正的判断在 Debit 的事务里
	available, err := s.balance.Available(ctx, userID)
	if err != nil {
		return nil, err
	}
	if available < cost {
		metrics.ConvertRequests.WithLabelValues("insufficient_credits").Inc()
		return nil, ledgerErr("convert.precheck", ErrInsufficientCredits, nil)
	}

	if s.converter == nil {
		return nil, ErrConverterUnavailable
	}

	result, err := s.converter.Convert(ctx, &upstream.ConvertRequest{
		SourceLanguage: source,
		TargetLanguage: target,
		Code:           req.Code,
	})
	if err != nil {
		metrics.ConvertRequests.WithLabelValues("upstream_failed").Inc()
		slog.Warn("conversion failed, credits not deducted", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	resp := &dto.ConvertResponse{
		ConvertedCode: result.ConvertedCode,
		Model:         result.Model,
	}

	// 转换已完成，扣费不随请求取消
	debit, err := s.ledger.Debit(context.WithoutCancel(ctx), userID, cost, map[string]interface{}{
		"from":            "convert",
		"source_language": source,
		"target_language": target,
	})
	switch {
	case err == nil:
		resp.CreditSource = debit.Source
		resp.CreditsUsed = debit.Cost
		resp.BillingStatus = BillingCharged
		metrics.ConvertRequests.WithLabelValues("charged").Inc()
		return resp, nil
	case IsLedgerFatal(err):
		s.markForReconciliation(ctx, userID, cost, source, target, err)
		resp.BillingStatus = BillingPendingReconciliation
		metrics.ConvertRequests.WithLabelValues("pending_reconciliation").Inc()
		return resp, nil
	default:
		metrics.ConvertRequests.WithLabelValues(ledgerKindLabel(err)).Inc()
		return nil, err
	}
}

func (s *ConvertService) markForReconciliation(ctx context.Context, userID int64, cost int, source, target string, cause error) {
	slog.Error("conversion delivered without billing",
		"user_id", userID,
		"cost", cost,
		"source_language", source,
		"target_language", target,
		"reconcile", true,
		"error", cause,
	)
	metrics.ReconcilePending.Inc()

	if s.reconcile == nil {
		return
	}
	msg := &queue.ReconcileMessage{
		UserID:         userID,
		Cost:           cost,
		SourceLanguage: source,
		TargetLanguage: target,
		Error:          cause.Error(),
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.reconcile.Push(context.WithoutCancel(ctx), msg); err != nil {
		slog.Error("push reconcile message failed", "user_id", userID, "error", err)
	}
}
