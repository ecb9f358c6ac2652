package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/internal/api/middleware"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/service"
)

type TransactionHandler struct {
	txService *service.TransactionService
}

func NewTransactionHandler(txService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{txService: txService}
}

// List 积分流水
// GET /api/v1/transactions?page=1&page_size=20&type=usage&search=
func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var query dto.TransactionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	items, total, err := h.txService.List(c.Request.Context(), userID, &query)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessPage(c, total, query.Page, query.PageSize, items)
}
