package dto

// ConvertRequest 代码转换请求
type ConvertRequest struct {
	SourceLanguage string `json:"source_language" binding:"required,max=30"`
	TargetLanguage string `json:"target_language" binding:"required,max=30"`
	Code           string `json:"code" binding:"required"`
}

// ConvertResponse 代码转换结果
type ConvertResponse struct {
	ConvertedCode string `json:"converted_code"`
	Model         string `json:"model,omitempty"`
	CreditSource  string `json:"credit_source,omitempty"`
	CreditsUsed   int    `json:"credits_used"`
	// BillingStatus charged 或 pending_reconciliation
	BillingStatus string `json:"billing_status"`
}

// LanguagesResponse 可用语言
type LanguagesResponse struct {
	Free []string `json:"free"`
	Paid []string `json:"paid"`
}
