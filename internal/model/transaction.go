package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 流水类型
const (
	TxKindUsage    = "usage"
	TxKindPurchase = "purchase"
	TxKindTopup    = "topup"
	TxKindShareOut = "share_out"
	TxKindShareIn  = "share_in"
)

// 积分来源
const (
	SourceFree   = "free"
	SourcePaid   = "paid"
	SourceShared = "shared"
)

// TxKinds 所有合法的流水类型
var TxKinds = []string{TxKindUsage, TxKindPurchase, TxKindTopup, TxKindShareOut, TxKindShareIn}

// CreditTransaction 积分流水，只追加不修改
type CreditTransaction struct {
	ID           string            `gorm:"primaryKey;size:36" json:"id"`
	UserID       int64             `gorm:"not null;index:idx_tx_user_created,priority:1" json:"user_id"`
	Kind         string            `gorm:"column:type;size:20;not null;index" json:"type"`
	Amount       int               `gorm:"not null" json:"amount"`
	CreditSource string            `gorm:"size:20;not null" json:"credit_source"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	// GrantID 本次变动涉及的购买积分记录
	GrantID *string `gorm:"size:36;index" json:"grant_id,omitempty"`
	// OwnerUserID 共享扣减时为积分所有者，共享流水中为对方用户
	OwnerUserID    *int64    `gorm:"index" json:"owner_user_id,omitempty"`
	IdempotencyKey *string   `gorm:"size:191;uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"not null;index:idx_tx_user_created,priority:2" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "transactions"
}

func (t *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
