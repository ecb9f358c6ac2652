package service

import (
	"context"
	"time"

	"github.com/qs3c/codemorph_server/internal/model"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/repository"
)

// ShareService 分享记录查询，创建分享走 LedgerService
type ShareService struct {
	userRepo  *repository.UserRepository
	grantRepo *repository.PurchasedCreditRepository
	shareRepo *repository.SharedCreditRepository
	txRepo    *repository.TransactionRepository
	now       func() time.Time
}

func NewShareService(
	userRepo *repository.UserRepository,
	grantRepo *repository.PurchasedCreditRepository,
	shareRepo *repository.SharedCreditRepository,
	txRepo *repository.TransactionRepository,
) *ShareService {
	return &ShareService{
		userRepo:  userRepo,
		grantRepo: grantRepo,
		shareRepo: shareRepo,
		txRepo:    txRepo,
		now:       utcNow,
	}
}

// ListSent 我分享出去的有效记录
func (s *ShareService) ListSent(ctx context.Context, ownerID int64) ([]*dto.ShareItem, error) {
	now := s.now()

	shares, err := s.shareRepo.WithContext(ctx).ListActiveByOwner(ownerID, now)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(shares))
	for _, share := range shares {
		ids = append(ids, share.SharedUserID)
	}
	users, err := s.userRepo.WithContext(ctx).GetByIDs(ids)
	if err != nil {
		return nil, err
	}

	txs := s.txRepo.WithContext(ctx)
	items := make([]*dto.ShareItem, 0, len(shares))
	for _, share := range shares {
		drawn, err := txs.SumSharedDrawn(share.SharedUserID, ownerID, share.StartDate)
		if err != nil {
			return nil, err
		}
		item := toShareItem(share, users[share.SharedUserID], share.SharedUserID)
		item.Drawn = drawn
		items = append(items, item)
	}
	return items, nil
}

// SentItem 新建分享的展示信息
func (s *ShareService) SentItem(ctx context.Context, share *model.SharedCredit) (*dto.ShareItem, error) {
	users, err := s.userRepo.WithContext(ctx).GetByIDs([]int64{share.SharedUserID})
	if err != nil {
		return nil, err
	}
	return toShareItem(share, users[share.SharedUserID], share.SharedUserID), nil
}

// ListReceived 我收到的有效记录，附带分享者当前余额
func (s *ShareService) ListReceived(ctx context.Context, userID int64) ([]*dto.ShareItem, error) {
	now := s.now()

	shares, err := s.shareRepo.WithContext(ctx).ListActiveByRecipient(userID, now)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(shares))
	for _, share := range shares {
		ids = append(ids, share.OwnerUserID)
	}
	users, err := s.userRepo.WithContext(ctx).GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	remaining, err := s.grantRepo.WithContext(ctx).SumActiveRemainingByUsers(ids, now)
	if err != nil {
		return nil, err
	}

	txs := s.txRepo.WithContext(ctx)
	items := make([]*dto.ShareItem, 0, len(shares))
	for _, share := range shares {
		drawn, err := txs.SumSharedDrawn(userID, share.OwnerUserID, share.StartDate)
		if err != nil {
			return nil, err
		}
		ownerRemaining := remaining[share.OwnerUserID]
		item := toShareItem(share, users[share.OwnerUserID], share.OwnerUserID)
		item.OwnerRemaining = &ownerRemaining
		item.Drawn = drawn
		items = append(items, item)
	}
	return items, nil
}

func toShareItem(share *model.SharedCredit, counterpart *model.User, counterpartID int64) *dto.ShareItem {
	brief := &dto.UserBrief{ID: counterpartID}
	if counterpart != nil {
		brief.Username = counterpart.Username
		brief.Email = counterpart.DisplayEmail()
	}
	return &dto.ShareItem{
		ID:        share.ID,
		User:      brief,
		StartDate: share.StartDate.UTC().Format(time.RFC3339),
		EndDate:   share.EndDate.UTC().Format(time.RFC3339),
	}
}
