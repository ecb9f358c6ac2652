package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/internal/api/middleware"
	"github.com/qs3c/codemorph_server/internal/model/dto"
	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/service"
)

type ConvertHandler struct {
	convertService *service.ConvertService
}

func NewConvertHandler(convertService *service.ConvertService) *ConvertHandler {
	return &ConvertHandler{convertService: convertService}
}

// Convert 代码转换，成功后扣除积分
// POST /api/v1/convert
func (h *ConvertHandler) Convert(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.convertService.Convert(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// Languages 免费和付费可用的语言
// GET /api/v1/languages
func (h *ConvertHandler) Languages(c *gin.Context) {
	response.Success(c, h.convertService.Languages())
}
