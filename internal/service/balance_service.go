package service

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/repository"
)

const recentActivityLimit = 10

// BalanceService 积分余额汇总，只读不加锁
type BalanceService struct {
	userRepo  *repository.UserRepository
	grantRepo *repository.PurchasedCreditRepository
	shareRepo *repository.SharedCreditRepository
	txRepo    *repository.TransactionRepository
	now       func() time.Time
}

func NewBalanceService(
	userRepo *repository.UserRepository,
	grantRepo *repository.PurchasedCreditRepository,
	shareRepo *repository.SharedCreditRepository,
	txRepo *repository.TransactionRepository,
) *BalanceService {
	return &BalanceService{
		userRepo:  userRepo,
		grantRepo: grantRepo,
		shareRepo: shareRepo,
		txRepo:    txRepo,
		now:       utcNow,
	}
}

// SetClock 替换时钟（测试用）
func (s *BalanceService) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

// Summarize 仪表盘积分概览
func (s *BalanceService) Summarize(ctx context.Context, userID int64) (*dto.CreditSummary, error) {
	now := s.now()

	user, err := s.userRepo.WithContext(ctx).GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	grants := s.grantRepo.WithContext(ctx)
	shares := s.shareRepo.WithContext(ctx)
	txs := s.txRepo.WithContext(ctx)

	paid, err := grants.SumActiveRemaining(userID, now)
	if err != nil {
		return nil, err
	}

	shared, err := s.sharedRemaining(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	dayStart := now.Truncate(24 * time.Hour)
	usedToday, err := txs.SumUsageBetween(userID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	sharedOut, err := shares.CountActiveByOwner(userID, now)
	if err != nil {
		return nil, err
	}
	received, err := shares.CountActiveByRecipient(userID, now)
	if err != nil {
		return nil, err
	}

	recent, err := txs.Recent(userID, recentActivityLimit)
	if err != nil {
		return nil, err
	}

	summary := &dto.CreditSummary{
		FreeCredits:      user.FreeCredits,
		PaidCredits:      paid,
		SharedCredits:    shared,
		AvailableCredits: user.FreeCredits + paid + shared,
		UsedToday:        usedToday,
		SharedOut:        sharedOut,
		Received:         received,
		RecentActivity:   make([]*dto.TransactionItem, 0, len(recent)),
	}
	for _, record := range recent {
		summary.RecentActivity = append(summary.RecentActivity, toTransactionItem(record))
	}

	soonest, err := grants.SoonestActive(userID, now)
	switch {
	case err == nil:
		summary.Plan = soonest.PlanType
		summary.PlanEndsAt = soonest.EndDate.UTC().Format(time.RFC3339)
		summary.DaysLeft = daysUntil(now, soonest.EndDate)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 免费用户按自然月重置
		summary.DaysLeft = daysUntil(now, startOfNextMonth(now))
	default:
		return nil, err
	}

	return summary, nil
}

// Available 当前可扣费积分合计，与 Debit 取用的积分池一致
// 共享部分直接取分享者的有效余额，不再扣除本人已用量
func (s *BalanceService) Available(ctx context.Context, userID int64) (int, error) {
	now := s.now()

	user, err := s.userRepo.WithContext(ctx).GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	paid, err := s.grantRepo.WithContext(ctx).SumActiveRemaining(userID, now)
	if err != nil {
		return 0, err
	}

	shared, err := s.spendableShared(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	return user.FreeCredits + paid + shared, nil
}

// spendableShared 有效共享对应的分享者有效余额之和
func (s *BalanceService) spendableShared(ctx context.Context, userID int64, now time.Time) (int, error) {
	received, err := s.shareRepo.WithContext(ctx).ListActiveByRecipient(userID, now)
	if err != nil {
		return 0, err
	}
	if len(received) == 0 {
		return 0, nil
	}

	ownerIDs := make([]int64, 0, len(received))
	for _, share := range received {
		ownerIDs = append(ownerIDs, share.OwnerUserID)
	}
	ownerRemaining, err := s.grantRepo.WithContext(ctx).SumActiveRemainingByUsers(ownerIDs, now)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, remaining := range ownerRemaining {
		total += remaining
	}
	return total, nil
}

// sharedRemaining 对每个分享者：max(0, 分享者有效余额 - 本次分享期间已用)，再求和
func (s *BalanceService) sharedRemaining(ctx context.Context, userID int64, now time.Time) (int, error) {
	received, err := s.shareRepo.WithContext(ctx).ListActiveByRecipient(userID, now)
	if err != nil {
		return 0, err
	}
	if len(received) == 0 {
		return 0, nil
	}

	ownerIDs := make([]int64, 0, len(received))
	for _, share := range received {
		ownerIDs = append(ownerIDs, share.OwnerUserID)
	}
	ownerRemaining, err := s.grantRepo.WithContext(ctx).SumActiveRemainingByUsers(ownerIDs, now)
	if err != nil {
		return 0, err
	}

	txs := s.txRepo.WithContext(ctx)
	total := 0
	for _, share := range received {
		drawn, err := txs.SumSharedDrawn(userID, share.OwnerUserID, share.StartDate)
		if err != nil {
			return 0, err
		}
		if left := ownerRemaining[share.OwnerUserID] - drawn; left > 0 {
			total += left
		}
	}
	return total, nil
}

func daysUntil(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

func startOfNextMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}
