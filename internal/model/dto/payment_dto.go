package dto

// PaymentWebhookRequest 支付回调（签名已由上游网关校验）
type PaymentWebhookRequest struct {
	PaymentID    string `json:"payment_id" binding:"required,max=100"`
	UserID       int64  `json:"user_id" binding:"required"`
	Credits      int    `json:"credits" binding:"omitempty,min=1"`
	Plan         string `json:"plan" binding:"omitempty,max=50"`
	DurationDays int    `json:"duration_days" binding:"omitempty,min=1,max=3660"`
}

// PaymentWebhookResponse 回调处理结果
type PaymentWebhookResponse struct {
	Status  string `json:"status"` // queued, applied, duplicate
	GrantID string `json:"grant_id,omitempty"`
}

// PaymentHistory 购买记录
type PaymentHistory struct {
	CurrentPlan   string         `json:"current_plan"`
	PurchaseCount int            `json:"purchase_count"`
	Items         []*PaymentItem `json:"items"`
}

// PaymentItem 单次购买
type PaymentItem struct {
	ID               string `json:"id"`
	PlanType         string `json:"plan_type"`
	InitialCredits   int    `json:"initial_credits"`
	RemainingCredits int    `json:"remaining_credits"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	Active           bool   `json:"active"`
	CreatedAt        string `json:"created_at"`
}
