package model

import (
	"time"
)

type User struct {
	ID                    int64      `gorm:"primaryKey" json:"id"`
	Username              string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email                 *string    `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash          *string    `gorm:"size:255" json:"-"`
	AvatarURL             string     `gorm:"size:500" json:"avatar_url"`
	Bio                   string     `gorm:"type:text" json:"bio"`
	GithubID              *string    `gorm:"column:github_id;size:50;uniqueIndex" json:"-"`
	FreeCredits           int        `gorm:"not null;default:0" json:"free_credits"`
	IsPaid                bool       `gorm:"not null;default:false" json:"is_paid"` // 缓存标记，以有效购买积分为准
	EmailVerified         bool       `gorm:"default:false" json:"email_verified"`
	VerificationCode      *string    `gorm:"size:100" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayEmail 返回邮箱，未绑定时为空串
func (u *User) DisplayEmail() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
