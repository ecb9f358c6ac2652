package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchasedCredit 一笔购买的积分，有效期为 [StartDate, EndDate)
// 过期或用尽后不删除，仅不再参与扣减
type PurchasedCredit struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	UserID           int64     `gorm:"not null;index:idx_pc_user_end,priority:1" json:"user_id"`
	PlanType         string    `gorm:"size:50;not null" json:"plan_type"`
	InitialCredits   int       `gorm:"not null" json:"initial_credits"`
	RemainingCredits int       `gorm:"not null" json:"remaining_credits"`
	StartDate        time.Time `gorm:"not null" json:"start_date"`
	EndDate          time.Time `gorm:"not null;index:idx_pc_user_end,priority:2" json:"end_date"`
	PaymentID        string    `gorm:"size:100" json:"payment_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (PurchasedCredit) TableName() string {
	return "purchased_credits"
}

func (p *PurchasedCredit) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ActiveAt 判断在 now 时刻是否有效
func (p *PurchasedCredit) ActiveAt(now time.Time) bool {
	return !now.Before(p.StartDate) && now.Before(p.EndDate)
}
