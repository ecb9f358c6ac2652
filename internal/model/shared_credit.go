package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShareSlotActive 有效共享占用的槽位值
const ShareSlotActive = 1

// SharedCredit 共享授权：接收方可在有效期内使用分享者的购买积分
//
// (owner_user_id, shared_user_id, active_slot) 唯一。有效记录的 active_slot 为 1，
// 过期后置为 NULL 释放槽位，因此同一对用户至多存在一条有效授权，历史记录保留。
type SharedCredit struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerUserID  int64     `gorm:"not null;uniqueIndex:idx_share_pair_slot,priority:1" json:"owner_user_id"`
	SharedUserID int64     `gorm:"not null;uniqueIndex:idx_share_pair_slot,priority:2;index" json:"shared_user_id"`
	ActiveSlot   *int      `gorm:"uniqueIndex:idx_share_pair_slot,priority:3" json:"-"`
	StartDate    time.Time `gorm:"not null" json:"start_date"`
	EndDate      time.Time `gorm:"not null;index" json:"end_date"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SharedCredit) TableName() string {
	return "shared_credits"
}

func (s *SharedCredit) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ActiveAt 判断在 now 时刻是否有效
func (s *SharedCredit) ActiveAt(now time.Time) bool {
	return !now.Before(s.StartDate) && now.Before(s.EndDate)
}
