package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/internal/model"
)

type SharedCreditRepository struct {
	db *gorm.DB
}

func NewSharedCreditRepository(db *gorm.DB) *SharedCreditRepository {
	return &SharedCreditRepository{db: db}
}

func (r *SharedCreditRepository) WithTx(tx *gorm.DB) *SharedCreditRepository {
	return &SharedCreditRepository{db: tx}
}

func (r *SharedCreditRepository) WithContext(ctx context.Context) *SharedCreditRepository {
	return &SharedCreditRepository{db: r.db.WithContext(ctx)}
}

func (r *SharedCreditRepository) Create(share *model.SharedCredit) error {
	return r.db.Create(share).Error
}

// GetActive 获取一对用户之间当前有效的共享
func (r *SharedCreditRepository) GetActive(ownerID, recipientID int64, now time.Time) (*model.SharedCredit, error) {
	var share model.SharedCredit
	err := r.db.Where("owner_user_id = ? AND shared_user_id = ? AND "+activeWindow, ownerID, recipientID, now, now).
		First(&share).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// ReleaseExpiredSlot 释放一对用户之间已过期记录占用的槽位
func (r *SharedCreditRepository) ReleaseExpiredSlot(ownerID, recipientID int64, now time.Time) error {
	return r.db.Model(&model.SharedCredit{}).
		Where("owner_user_id = ? AND shared_user_id = ? AND active_slot IS NOT NULL AND end_date <= ?", ownerID, recipientID, now).
		Update("active_slot", nil).Error
}

// ReleaseAllExpiredSlots 释放全部过期共享的槽位，返回处理行数
func (r *SharedCreditRepository) ReleaseAllExpiredSlots(now time.Time) (int64, error) {
	result := r.db.Model(&model.SharedCredit{}).
		Where("active_slot IS NOT NULL AND end_date <= ?", now).
		Update("active_slot", nil)
	return result.RowsAffected, result.Error
}

// ListActiveByOwner 我分享出去的有效共享
func (r *SharedCreditRepository) ListActiveByOwner(ownerID int64, now time.Time) ([]*model.SharedCredit, error) {
	var shares []*model.SharedCredit
	err := r.db.Where("owner_user_id = ? AND "+activeWindow, ownerID, now, now).
		Order("start_date DESC").Find(&shares).Error
	return shares, err
}

// ListActiveByRecipient 我收到的有效共享
func (r *SharedCreditRepository) ListActiveByRecipient(recipientID int64, now time.Time) ([]*model.SharedCredit, error) {
	var shares []*model.SharedCredit
	err := r.db.Where("shared_user_id = ? AND "+activeWindow, recipientID, now, now).
		Order("start_date DESC").Find(&shares).Error
	return shares, err
}

func (r *SharedCreditRepository) CountActiveByOwner(ownerID int64, now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.SharedCredit{}).
		Where("owner_user_id = ? AND "+activeWindow, ownerID, now, now).
		Count(&count).Error
	return count, err
}

func (r *SharedCreditRepository) CountActiveByRecipient(recipientID int64, now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.SharedCredit{}).
		Where("shared_user_id = ? AND "+activeWindow, recipientID, now, now).
		Count(&count).Error
	return count, err
}
