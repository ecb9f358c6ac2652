package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/config"
	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/pkg/metrics"
	"github.com/qs3c/codemorph_server/internal/pkg/pubsub"
	"github.com/qs3c/codemorph_server/internal/repository"
)

var (
	ErrShareToSelf = errors.New("不能向自己分享积分")
)

// LedgerEventPublisher 账本事件发布
type LedgerEventPublisher interface {
	PublishLedgerEvent(ctx context.Context, evt *pubsub.LedgerEvent) error
}

// ShareNotifier 共享成功后通知接收方
type ShareNotifier interface {
	SendShareNotification(to, ownerName string, endDate time.Time) error
}

// DebitResult 一次扣减的结果
type DebitResult struct {
	TransactionID string `json:"transaction_id"`
	Source        string `json:"source"`
	Cost          int    `json:"cost"`
	GrantID       string `json:"grant_id,omitempty"`
	OwnerUserID   int64  `json:"owner_user_id,omitempty"`
	// Remaining 被扣减的积分池剩余
	Remaining int `json:"remaining"`
}

// GrantRequest 购买积分入账请求
type GrantRequest struct {
	UserID         int64
	Amount         int
	Plan           string
	DurationDays   int
	IdempotencyKey string
	PaymentID      string
}

// GrantResult 入账结果，Duplicate 表示该幂等键已处理过
type GrantResult struct {
	Grant     *model.PurchasedCredit
	Duplicate bool
}

// LedgerService 积分账本，所有余额变动都经过这里
type LedgerService struct {
	db        *gorm.DB
	userRepo  *repository.UserRepository
	grantRepo *repository.PurchasedCreditRepository
	shareRepo *repository.SharedCreditRepository
	txRepo    *repository.TransactionRepository
	publisher LedgerEventPublisher
	notifier  ShareNotifier
	cfg       *config.Config
	now       func() time.Time
}

func NewLedgerService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	grantRepo *repository.PurchasedCreditRepository,
	shareRepo *repository.SharedCreditRepository,
	txRepo *repository.TransactionRepository,
	cfg *config.Config,
) *LedgerService {
	return &LedgerService{
		db:        db,
		userRepo:  userRepo,
		grantRepo: grantRepo,
		shareRepo: shareRepo,
		txRepo:    txRepo,
		cfg:       cfg,
		now:       utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// SetPublisher 设置事件发布者，为 nil 时不发布
func (s *LedgerService) SetPublisher(p LedgerEventPublisher) {
	s.publisher = p
}

// SetNotifier 设置共享通知
func (s *LedgerService) SetNotifier(n ShareNotifier) {
	s.notifier = n
}

// SetClock 替换时钟（测试用）
func (s *LedgerService) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

// Now 账本时钟
func (s *LedgerService) Now() time.Time {
	return s.now()
}

// Debit 扣减积分：自己的购买积分 → 共享积分 → 免费积分
//
// 整个过程在一个事务内完成，三个来源的有效期判断使用同一个 now。
// 每次最多锁定一行，成功时写入且只写入一条 usage 流水。失败不自动重试。
func (s *LedgerService) Debit(ctx context.Context, userID int64, cost int, meta map[string]interface{}) (*DebitResult, error) {
	const op = "ledger.Debit"

	if cost <= 0 {
		return nil, ledgerErr(op, ErrInvalidLedgerInput, fmt.Errorf("cost must be positive, got %d", cost))
	}

	if timeout := s.cfg.Ledger.DebitTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	now := s.now()

	var result *DebitResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.debitInTx(tx, userID, cost, now, meta)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	metrics.LedgerDebitDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		err = classifyStorageErr(op, err)
		kind := ledgerKindLabel(err)
		metrics.LedgerDebitFailures.WithLabelValues(kind).Inc()
		if IsLedgerFatal(err) {
			slog.Error("debit failed", "user_id", userID, "cost", cost, "kind", kind, "error", err)
		} else {
			slog.Info("debit rejected", "user_id", userID, "cost", cost, "kind", kind)
		}
		return nil, err
	}

	metrics.LedgerDebits.WithLabelValues(result.Source).Inc()
	slog.Info("credits debited",
		"user_id", userID,
		"cost", cost,
		"source", result.Source,
		"grant_id", result.GrantID,
		"owner_id", result.OwnerUserID,
	)

	remaining := result.Remaining
	s.publish(ctx, &pubsub.LedgerEvent{
		UserID:      userID,
		Kind:        model.TxKindUsage,
		Source:      result.Source,
		Amount:      -cost,
		GrantID:     result.GrantID,
		OwnerUserID: result.OwnerUserID,
		Remaining:   &remaining,
		OccurredAt:  now,
	})
	if result.Source == model.SourceShared {
		s.publish(ctx, &pubsub.LedgerEvent{
			UserID:     result.OwnerUserID,
			Kind:       model.TxKindUsage,
			Source:     model.SourceShared,
			Amount:     -cost,
			GrantID:    result.GrantID,
			Remaining:  &remaining,
			OccurredAt: now,
		})
	}

	return result, nil
}

func (s *LedgerService) debitInTx(tx *gorm.DB, userID int64, cost int, now time.Time, meta map[string]interface{}) (*DebitResult, error) {
	const op = "ledger.Debit"

	users := s.userRepo.WithTx(tx)
	grants := s.grantRepo.WithTx(tx)

	// 1. 自己的购买积分
	grant, err := grants.LockSoonestActive(userID, cost, now)
	switch {
	case err == nil:
		return s.drawGrant(tx, userID, grant, cost, model.SourcePaid, now, meta)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ledgerErr(op, ErrLedgerFatal, err)
	}

	// 2. 别人共享给我的积分：先无锁挑选候选，再按 ID 加锁复核
	var tried []string
	retries := s.cfg.Ledger.SharedRetry
	if retries <= 0 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		candidates, err := grants.FindSharedCandidates(userID, cost, now, tried, 1)
		if err != nil {
			return nil, ledgerErr(op, ErrLedgerFatal, err)
		}
		if len(candidates) == 0 {
			break
		}

		candidate := candidates[0]
		grant, err := grants.LockActiveByID(candidate.GrantID, cost, now)
		if err == nil {
			return s.drawGrant(tx, userID, grant, cost, model.SourceShared, now, meta)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledgerErr(op, ErrLedgerFatal, err)
		}
		tried = append(tried, candidate.GrantID)
	}

	// 3. 免费积分
	user, err := users.LockByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledgerErr(op, ErrInsufficientCredits, ErrUserNotFound)
		}
		return nil, ledgerErr(op, ErrLedgerFatal, err)
	}
	if user.FreeCredits < cost {
		return nil, ledgerErr(op, ErrInsufficientCredits, nil)
	}

	ok, err := users.DebitFree(userID, cost)
	if err != nil {
		return nil, ledgerErr(op, ErrLedgerFatal, err)
	}
	if !ok {
		return nil, ledgerErr(op, ErrStorageConflict, errors.New("free balance changed under lock"))
	}

	record := &model.CreditTransaction{
		UserID:       userID,
		Kind:         model.TxKindUsage,
		Amount:       -cost,
		CreditSource: model.SourceFree,
		Metadata:     mergeMeta(meta, nil),
		CreatedAt:    now,
	}
	if err := s.txRepo.WithTx(tx).Create(record); err != nil {
		return nil, ledgerErr(op, ErrLedgerFatal, err)
	}

	return &DebitResult{
		TransactionID: record.ID,
		Source:        model.SourceFree,
		Cost:          cost,
		Remaining:     user.FreeCredits - cost,
	}, nil
}

// drawGrant 从已加锁的购买积分中扣减并记录流水
func (s *LedgerService) drawGrant(tx *gorm.DB, userID int64, grant *model.PurchasedCredit, cost int, source string, now time.Time, meta map[string]interface{}) (*DebitResult, error) {
	const op = "ledger.Debit"

	ok, err := s.grantRepo.WithTx(tx).Decrement(grant.ID, cost)
	if err != nil {
		return nil, ledgerErr(op, ErrLedgerFatal, err)
	}
	if !ok {
		return nil, ledgerErr(op, ErrStorageConflict, fmt.Errorf("grant %s changed under lock", grant.ID))
	}

	grantID := grant.ID
	record := &model.CreditTransaction{
		UserID:       userID,
		Kind:         model.TxKindUsage,
		Amount:       -cost,
		CreditSource: source,
		GrantID:      &grantID,
		CreatedAt:    now,
	}

	extra := map[string]interface{}{"grant_id": grant.ID}
	result := &DebitResult{
		Source:    source,
		Cost:      cost,
		GrantID:   grant.ID,
		Remaining: grant.RemainingCredits - cost,
	}
	if source == model.SourceShared {
		ownerID := grant.UserID
		record.OwnerUserID = &ownerID
		extra["owner"] = ownerID
		result.OwnerUserID = ownerID
	}
	record.Metadata = mergeMeta(meta, extra)

	if err := s.txRepo.WithTx(tx).Create(record); err != nil {
		return nil, ledgerErr(op, ErrLedgerFatal, err)
	}
	result.TransactionID = record.ID

	return result, nil
}

// GrantPurchasedCredits 购买积分入账，按幂等键去重
func (s *LedgerService) GrantPurchasedCredits(ctx context.Context, req *GrantRequest) (*GrantResult, error) {
	const op = "ledger.GrantPurchasedCredits"

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, ledgerErr(op, ErrInvalidLedgerInput, errors.New("idempotency key is required"))
	}
	if req.Amount <= 0 {
		return nil, ledgerErr(op, ErrInvalidLedgerInput, fmt.Errorf("amount must be positive, got %d", req.Amount))
	}
	days := req.DurationDays
	if days <= 0 {
		days = s.cfg.Credits.DefaultPlanDays
	}
	plan := req.Plan
	if plan == "" {
		plan = s.cfg.Credits.DefaultPlan
	}

	now := s.now()
	var result GrantResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txs := s.txRepo.WithTx(tx)

		existing, err := txs.GetByIdempotencyKey(key)
		if err == nil {
			if existing.Kind != model.TxKindPurchase {
				return ledgerErr(op, ErrInvalidLedgerInput, fmt.Errorf("idempotency key %q used by %s", key, existing.Kind))
			}
			result.Duplicate = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		users := s.userRepo.WithTx(tx)
		if _, err := users.LockByID(req.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledgerErr(op, ErrInvalidLedgerInput, ErrUserNotFound)
			}
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		grant := &model.PurchasedCredit{
			UserID:           req.UserID,
			PlanType:         plan,
			InitialCredits:   req.Amount,
			RemainingCredits: req.Amount,
			StartDate:        now,
			EndDate:          now.AddDate(0, 0, days),
			PaymentID:        req.PaymentID,
			CreatedAt:        now,
		}
		if err := s.grantRepo.WithTx(tx).Create(grant); err != nil {
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		grantID := grant.ID
		record := &model.CreditTransaction{
			UserID:         req.UserID,
			Kind:           model.TxKindPurchase,
			Amount:         req.Amount,
			CreditSource:   model.SourcePaid,
			GrantID:        &grantID,
			IdempotencyKey: &key,
			Metadata: datatypes.JSONMap{
				"plan":            plan,
				"grant_id":        grant.ID,
				"idempotency_key": key,
				"payment_id":      req.PaymentID,
				"duration_days":   days,
			},
			CreatedAt: now,
		}
		if err := txs.Create(record); err != nil {
			return err
		}

		if err := users.SetPaid(req.UserID, true); err != nil {
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		result.Grant = grant
		return nil
	})

	if err != nil {
		// 并发重复投递：唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.LedgerGrants.WithLabelValues("duplicate").Inc()
			slog.Info("purchase already applied", "user_id", req.UserID, "idempotency_key", key)
			return &GrantResult{Duplicate: true}, nil
		}
		err = classifyStorageErr(op, err)
		metrics.LedgerGrants.WithLabelValues("error").Inc()
		slog.Error("grant purchased credits failed", "user_id", req.UserID, "idempotency_key", key, "error", err)
		return nil, err
	}

	if result.Duplicate {
		metrics.LedgerGrants.WithLabelValues("duplicate").Inc()
		slog.Info("purchase already applied", "user_id", req.UserID, "idempotency_key", key)
		return &result, nil
	}

	metrics.LedgerGrants.WithLabelValues("created").Inc()
	slog.Info("purchased credits granted",
		"user_id", req.UserID,
		"grant_id", result.Grant.ID,
		"amount", req.Amount,
		"plan", plan,
		"end_date", result.Grant.EndDate,
	)

	remaining := result.Grant.RemainingCredits
	s.publish(ctx, &pubsub.LedgerEvent{
		UserID:     req.UserID,
		Kind:       model.TxKindPurchase,
		Source:     model.SourcePaid,
		Amount:     req.Amount,
		GrantID:    result.Grant.ID,
		Remaining:  &remaining,
		OccurredAt: now,
	})

	return &result, nil
}

// CreateShare 将自己的购买积分共享给另一个用户
// recipient 可以是邮箱或用户 ID
func (s *LedgerService) CreateShare(ctx context.Context, ownerID int64, recipient string) (*model.SharedCredit, error) {
	const op = "ledger.CreateShare"

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, ledgerErr(op, ErrRecipientNotFound, nil)
	}

	now := s.now()
	var (
		share       *model.SharedCredit
		owner       *model.User
		shareTarget *model.User
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		shares := s.shareRepo.WithTx(tx)
		txs := s.txRepo.WithTx(tx)

		// 锁定分享者，同一分享者的并发分享串行执行
		var err error
		owner, err = users.LockByID(ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledgerErr(op, ErrNotEligible, ErrUserNotFound)
			}
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		eligible, err := s.grantRepo.WithTx(tx).HasActiveWithRemaining(ownerID, now)
		if err != nil {
			return ledgerErr(op, ErrLedgerFatal, err)
		}
		if !eligible {
			return ledgerErr(op, ErrNotEligible, nil)
		}

		shareTarget, err = resolveRecipient(users, recipient)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledgerErr(op, ErrRecipientNotFound, nil)
			}
			return ledgerErr(op, ErrLedgerFatal, err)
		}
		if shareTarget.ID == ownerID {
			return ledgerErr(op, ErrInvalidLedgerInput, ErrShareToSelf)
		}

		if _, err := shares.GetActive(ownerID, shareTarget.ID, now); err == nil {
			return ledgerErr(op, ErrAlreadyShared, nil)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		if err := shares.ReleaseExpiredSlot(ownerID, shareTarget.ID, now); err != nil {
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		slot := model.ShareSlotActive
		share = &model.SharedCredit{
			OwnerUserID:  ownerID,
			SharedUserID: shareTarget.ID,
			ActiveSlot:   &slot,
			StartDate:    now,
			EndDate:      now.AddDate(0, 0, s.shareDays()),
			CreatedAt:    now,
		}
		if err := shares.Create(share); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ledgerErr(op, ErrAlreadyShared, err)
			}
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		ownerRef := ownerID
		shareOut := &model.CreditTransaction{
			UserID:       ownerID,
			Kind:         model.TxKindShareOut,
			Amount:       0,
			CreditSource: model.SourcePaid,
			Metadata: datatypes.JSONMap{
				"shared_to": shareTarget.ID,
				"share_id":  share.ID,
				"end_date":  share.EndDate.Format(time.RFC3339),
			},
			CreatedAt: now,
		}
		shareIn := &model.CreditTransaction{
			UserID:       shareTarget.ID,
			Kind:         model.TxKindShareIn,
			Amount:       0,
			CreditSource: model.SourceShared,
			OwnerUserID:  &ownerRef,
			Metadata: datatypes.JSONMap{
				"shared_from": ownerID,
				"share_id":    share.ID,
				"end_date":    share.EndDate.Format(time.RFC3339),
			},
			CreatedAt: now,
		}
		if err := txs.Create(shareOut); err != nil {
			return ledgerErr(op, ErrLedgerFatal, err)
		}
		if err := txs.Create(shareIn); err != nil {
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		return nil
	})

	if err != nil {
		err = classifyStorageErr(op, err)
		metrics.LedgerShares.WithLabelValues(ledgerKindLabel(err)).Inc()
		if IsLedgerFatal(err) {
			slog.Error("create share failed", "owner_id", ownerID, "error", err)
		}
		return nil, err
	}

	metrics.LedgerShares.WithLabelValues("created").Inc()
	slog.Info("credits shared", "owner_id", ownerID, "recipient_id", share.SharedUserID, "end_date", share.EndDate)

	s.publish(ctx, &pubsub.LedgerEvent{
		Type:        pubsub.EventShareReceived,
		UserID:      share.SharedUserID,
		Kind:        model.TxKindShareIn,
		Source:      model.SourceShared,
		OwnerUserID: ownerID,
		OccurredAt:  now,
	})

	if s.notifier != nil && shareTarget.Email != nil {
		to, ownerName, endDate := *shareTarget.Email, owner.Username, share.EndDate
		go func() {
			if err := s.notifier.SendShareNotification(to, ownerName, endDate); err != nil {
				slog.Warn("share notification failed", "recipient_id", share.SharedUserID, "error", err)
			}
		}()
	}

	return share, nil
}

// TopUpFreeCredits 增加免费积分（管理员充值、月度发放）
// key 非空时按幂等键去重，重复调用返回 false
func (s *LedgerService) TopUpFreeCredits(ctx context.Context, userID int64, amount int, by, key string) (bool, error) {
	const op = "ledger.TopUpFreeCredits"

	if amount <= 0 {
		return false, ledgerErr(op, ErrInvalidLedgerInput, fmt.Errorf("amount must be positive, got %d", amount))
	}

	now := s.now()
	var balance int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)

		user, err := users.LockByID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledgerErr(op, ErrInvalidLedgerInput, ErrUserNotFound)
			}
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		if err := users.CreditFree(userID, amount); err != nil {
			return ledgerErr(op, ErrLedgerFatal, err)
		}

		record := &model.CreditTransaction{
			UserID:       userID,
			Kind:         model.TxKindTopup,
			Amount:       amount,
			CreditSource: model.SourceFree,
			Metadata:     datatypes.JSONMap{"by": by},
			CreatedAt:    now,
		}
		if key != "" {
			record.IdempotencyKey = &key
		}
		if err := s.txRepo.WithTx(tx).Create(record); err != nil {
			return err
		}

		balance = user.FreeCredits + amount
		return nil
	})

	if err != nil {
		if key != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, classifyStorageErr(op, err)
	}

	metrics.LedgerTopups.WithLabelValues(by).Inc()
	slog.Info("free credits topped up", "user_id", userID, "amount", amount, "by", by)

	s.publish(ctx, &pubsub.LedgerEvent{
		UserID:     userID,
		Kind:       model.TxKindTopup,
		Source:     model.SourceFree,
		Amount:     amount,
		Remaining:  &balance,
		OccurredAt: now,
	})

	return true, nil
}

// ResetMonthlyFreeCredits 将免费积分补足到每月额度，每人每月只发放一次
func (s *LedgerService) ResetMonthlyFreeCredits(ctx context.Context) (int, error) {
	allowance := s.cfg.Credits.MonthlyFree
	if allowance <= 0 {
		return 0, nil
	}

	period := s.now().Format("2006-01")
	const batchSize = 200

	var (
		afterID int64
		granted int
	)
	for {
		users, err := s.userRepo.WithContext(ctx).ListBelowFreeCredits(allowance, batchSize, afterID)
		if err != nil {
			return granted, err
		}
		if len(users) == 0 {
			break
		}

		for _, u := range users {
			afterID = u.ID
			key := fmt.Sprintf("monthly_free:%d:%s", u.ID, period)
			ok, err := s.TopUpFreeCredits(ctx, u.ID, allowance-u.FreeCredits, "monthly_reset", key)
			if err != nil {
				slog.Error("monthly free credit reset failed", "user_id", u.ID, "error", err)
				continue
			}
			if ok {
				granted++
			}
		}

		if len(users) < batchSize {
			break
		}
	}

	return granted, nil
}

// HasPaidAccess 是否有有效期内且仍有余额的购买积分
func (s *LedgerService) HasPaidAccess(ctx context.Context, userID int64) (bool, error) {
	return s.grantRepo.WithContext(ctx).HasActiveWithRemaining(userID, s.now())
}

// RefreshPaidFlags 刷新 is_paid 缓存
func (s *LedgerService) RefreshPaidFlags(ctx context.Context) (int64, error) {
	return s.userRepo.WithContext(ctx).RefreshPaidFlags(s.now())
}

// RetireExpiredShares 释放过期共享占用的槽位
func (s *LedgerService) RetireExpiredShares(ctx context.Context) (int64, error) {
	return s.shareRepo.WithContext(ctx).ReleaseAllExpiredSlots(s.now())
}

func (s *LedgerService) shareDays() int {
	if s.cfg.Credits.ShareDays > 0 {
		return s.cfg.Credits.ShareDays
	}
	return 30
}

func (s *LedgerService) publish(ctx context.Context, evt *pubsub.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(context.WithoutCancel(ctx), evt); err != nil {
		slog.Warn("publish ledger event failed", "user_id", evt.UserID, "kind", evt.Kind, "error", err)
	}
}

// resolveRecipient 按邮箱或用户 ID 查找接收方
func resolveRecipient(users *repository.UserRepository, recipient string) (*model.User, error) {
	if strings.Contains(recipient, "@") {
		return users.GetByEmail(strings.ToLower(recipient))
	}
	id, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	return users.GetByID(id)
}

// classifyStorageErr 将非账本错误归类，死锁和锁等待超时视为冲突
func classifyStorageErr(op string, err error) error {
	var le *LedgerError
	if errors.As(err, &le) {
		return err
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == 1213 || myErr.Number == 1205) {
		return ledgerErr(op, ErrStorageConflict, err)
	}

	return ledgerErr(op, ErrLedgerFatal, err)
}

func mergeMeta(base, extra map[string]interface{}) datatypes.JSONMap {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(datatypes.JSONMap, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
