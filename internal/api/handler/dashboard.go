package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/internal/api/middleware"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/service"
)

type DashboardHandler struct {
	balanceService *service.BalanceService
}

func NewDashboardHandler(balanceService *service.BalanceService) *DashboardHandler {
	return &DashboardHandler{
		balanceService: balanceService,
	}
}

// Summary 获取当前用户积分概览
// GET /api/v1/dashboard/summary
func (h *DashboardHandler) Summary(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	summary, err := h.balanceService.Summarize(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, summary)
}
