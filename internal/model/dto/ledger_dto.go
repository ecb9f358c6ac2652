package dto

// CreditSummary 积分概览（仪表盘）
type CreditSummary struct {
	FreeCredits      int                `json:"free_credits"`
	PaidCredits      int                `json:"paid_credits"`
	SharedCredits    int                `json:"shared_credits"`
	AvailableCredits int                `json:"available_credits"`
	UsedToday        int                `json:"used_today"`
	SharedOut        int64              `json:"shared_out"`
	Received         int64              `json:"received"`
	Plan             string             `json:"plan,omitempty"`
	PlanEndsAt       string             `json:"plan_ends_at,omitempty"`
	DaysLeft         int                `json:"days_left"`
	RecentActivity   []*TransactionItem `json:"recent_activity"`
}

// TransactionItem 单条流水
type TransactionItem struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Amount       int                    `json:"amount"`
	CreditSource string                 `json:"credit_source"`
	OwnerUserID  *int64                 `json:"owner_user_id,omitempty"`
	Meta         map[string]interface{} `json:"meta,omitempty"`
	CreatedAt    string                 `json:"created_at"`
}

// TransactionQuery 流水查询参数
type TransactionQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
	Type     string `form:"type" binding:"omitempty,oneof=all usage purchase topup share_out share_in"`
	Search   string `form:"search" binding:"omitempty,max=100"`
}

// CreateShareRequest 分享积分请求，recipient 为邮箱或用户 ID
type CreateShareRequest struct {
	Recipient string `json:"recipient" binding:"required,max=255"`
}

// ShareItem 分享记录
type ShareItem struct {
	ID        string     `json:"id"`
	User      *UserBrief `json:"user"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	// OwnerRemaining 分享者当前可用的购买积分，仅收到的分享返回
	OwnerRemaining *int `json:"owner_remaining,omitempty"`
	// Drawn 本次分享期间接收方已使用的积分
	Drawn int `json:"drawn"`
}

// UserBrief 用户简要信息
type UserBrief struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// TopUpRequest 管理员充值免费积分
type TopUpRequest struct {
	UserID         int64  `json:"user_id" binding:"required"`
	Amount         int    `json:"amount" binding:"required,min=1,max=100000"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=100"`
}

// TopUpResponse 充值结果
type TopUpResponse struct {
	Applied bool `json:"applied"`
}
