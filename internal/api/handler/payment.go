package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/internal/api/middleware"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
	ledger         *service.LedgerService
}

func NewPaymentHandler(paymentService *service.PaymentService, ledger *service.LedgerService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		ledger:         ledger,
	}
}

// History 购买记录
// GET /api/v1/payments
func (h *PaymentHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	history, err := h.paymentService.History(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, history)
}

// Webhook 支付成功回调，重复投递按 payment_id 去重
// POST /api/v1/webhooks/payment
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req dto.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.HandleWebhook(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// TopUp 管理员补发免费积分
// POST /api/v1/admin/topup
func (h *PaymentHandler) TopUp(c *gin.Context) {
	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	applied, err := h.ledger.TopUpFreeCredits(c.Request.Context(), req.UserID, req.Amount, "admin", req.IdempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, &dto.TopUpResponse{Applied: applied})
}
