package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/codemorph_server/internal/model"
)

var fixtureSeq atomic.Int64

func nextSeq() int64 {
	return fixtureSeq.Add(1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	seq := nextSeq()
	email := fmt.Sprintf("test_%d@example.com", seq)
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:      fmt.Sprintf("testuser_%d", seq),
		Email:         &email,
		PasswordHash:  &passwordHash,
		FreeCredits:   25,
		EmailVerified: true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithFreeCredits 设置免费积分
func WithFreeCredits(n int) func(*model.User) {
	return func(u *model.User) {
		u.FreeCredits = n
	}
}

// WithPaid 设置付费标记
func WithPaid(paid bool) func(*model.User) {
	return func(u *model.User) {
		u.IsPaid = paid
	}
}

// WithUnverified 邮箱未验证
func WithUnverified() func(*model.User) {
	return func(u *model.User) {
		u.EmailVerified = false
	}
}

// TestGrant 创建购买积分，默认 100 积分、一小时前开始、30 天后到期
func TestGrant(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.PurchasedCredit)) *model.PurchasedCredit {
	t.Helper()

	now := time.Now().UTC()
	grant := &model.PurchasedCredit{
		UserID:           userID,
		PlanType:         "monthly",
		InitialCredits:   100,
		RemainingCredits: 100,
		StartDate:        now.Add(-time.Hour),
		EndDate:          now.AddDate(0, 0, 30),
		CreatedAt:        now,
	}

	for _, opt := range opts {
		opt(grant)
	}

	if err := db.Create(grant).Error; err != nil {
		t.Fatalf("Failed to create test grant: %v", err)
	}

	return grant
}

// WithGrantCredits 设置初始和剩余积分
func WithGrantCredits(initial, remaining int) func(*model.PurchasedCredit) {
	return func(g *model.PurchasedCredit) {
		g.InitialCredits = initial
		g.RemainingCredits = remaining
	}
}

// WithGrantWindow 设置有效期
func WithGrantWindow(start, end time.Time) func(*model.PurchasedCredit) {
	return func(g *model.PurchasedCredit) {
		g.StartDate = start.UTC()
		g.EndDate = end.UTC()
	}
}

// WithGrantPlan 设置套餐
func WithGrantPlan(plan string) func(*model.PurchasedCredit) {
	return func(g *model.PurchasedCredit) {
		g.PlanType = plan
	}
}

// TestShare 创建有效共享，默认一小时前开始、30 天后到期
func TestShare(t *testing.T, db *gorm.DB, ownerID, recipientID int64, opts ...func(*model.SharedCredit)) *model.SharedCredit {
	t.Helper()

	now := time.Now().UTC()
	slot := model.ShareSlotActive
	share := &model.SharedCredit{
		OwnerUserID:  ownerID,
		SharedUserID: recipientID,
		ActiveSlot:   &slot,
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.AddDate(0, 0, 30),
		CreatedAt:    now,
	}

	for _, opt := range opts {
		opt(share)
	}

	if err := db.Create(share).Error; err != nil {
		t.Fatalf("Failed to create test share: %v", err)
	}

	return share
}

// WithShareWindow 设置共享有效期
func WithShareWindow(start, end time.Time) func(*model.SharedCredit) {
	return func(s *model.SharedCredit) {
		s.StartDate = start.UTC()
		s.EndDate = end.UTC()
	}
}

// WithShareRetired 已释放槽位的历史共享
func WithShareRetired() func(*model.SharedCredit) {
	return func(s *model.SharedCredit) {
		s.ActiveSlot = nil
	}
}

// TestTransaction 创建流水
func TestTransaction(t *testing.T, db *gorm.DB, userID int64, kind string, amount int, source string, opts ...func(*model.CreditTransaction)) *model.CreditTransaction {
	t.Helper()

	record := &model.CreditTransaction{
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		CreditSource: source,
		CreatedAt:    time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(record)
	}

	if err := db.Create(record).Error; err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}

	return record
}

// WithTxCreatedAt 设置流水时间
func WithTxCreatedAt(at time.Time) func(*model.CreditTransaction) {
	return func(r *model.CreditTransaction) {
		r.CreatedAt = at.UTC()
	}
}

// WithTxOwner 设置共享积分所有者
func WithTxOwner(ownerID int64) func(*model.CreditTransaction) {
	return func(r *model.CreditTransaction) {
		r.OwnerUserID = &ownerID
	}
}

// WithTxGrant 设置关联的购买积分
func WithTxGrant(grantID string) func(*model.CreditTransaction) {
	return func(r *model.CreditTransaction) {
		r.GrantID = &grantID
	}
}

// WithTxMeta 设置元数据
func WithTxMeta(meta map[string]interface{}) func(*model.CreditTransaction) {
	return func(r *model.CreditTransaction) {
		r.Metadata = datatypes.JSONMap(meta)
	}
}
