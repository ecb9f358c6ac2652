package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/internal/api/middleware"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/service"
)

type ShareHandler struct {
	ledger       *service.LedgerService
	shareService *service.ShareService
}

func NewShareHandler(ledger *service.LedgerService, shareService *service.ShareService) *ShareHandler {
	return &ShareHandler{
		ledger:       ledger,
		shareService: shareService,
	}
}

// Create 与其他用户共享付费积分
// POST /api/v1/shared-credits
func (h *ShareHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	share, err := h.ledger.CreateShare(c.Request.Context(), userID, req.Recipient)
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.shareService.SentItem(c.Request.Context(), share)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "分享成功", item)
}

// ListSent 我分享出去的积分
// GET /api/v1/shared-credits/sent
func (h *ShareHandler) ListSent(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	items, err := h.shareService.ListSent(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"items": items})
}

// ListReceived 我收到的共享积分
// GET /api/v1/shared-credits/received
func (h *ShareHandler) ListReceived(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	items, err := h.shareService.ListReceived(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"items": items})
}
