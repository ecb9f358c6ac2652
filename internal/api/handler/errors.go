package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/codemorph_server/internal/pkg/response"
	"github.com/qs3c/codemorph_server/internal/service"
)

// respondError 将业务错误映射为统一响应码
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		response.InsufficientCredits(c, service.ErrInsufficientCredits.Error())
	case errors.Is(err, service.ErrUpgradeRequired):
		response.UpgradeRequired(c, service.ErrUpgradeRequired.Error())
	case errors.Is(err, service.ErrNotEligible):
		response.UpgradeRequired(c, service.ErrNotEligible.Error())
	case errors.Is(err, service.ErrRecipientNotFound):
		response.NotFoundError(c, service.ErrRecipientNotFound.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFoundError(c, service.ErrUserNotFound.Error())
	case errors.Is(err, service.ErrAlreadyShared):
		response.DuplicateError(c, service.ErrAlreadyShared.Error())
	case errors.Is(err, service.ErrInvalidLedgerInput),
		errors.Is(err, service.ErrInvalidPayment),
		errors.Is(err, service.ErrMissingCode),
		errors.Is(err, service.ErrMissingLanguage),
		errors.Is(err, service.ErrSourceTooLarge):
		response.ParamError(c, errorMessage(err))
	case errors.Is(err, service.ErrConversionFailed):
		response.ServerError(c, service.ErrConversionFailed.Error())
	case errors.Is(err, service.ErrConverterUnavailable):
		response.ServerError(c, service.ErrConverterUnavailable.Error())
	case errors.Is(err, service.ErrStorageConflict):
		response.ServerError(c, service.ErrStorageConflict.Error())
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		response.ServerError(c, "")
	}
}

// errorMessage 取最内层错误的文案，去掉操作名和类别前缀
func errorMessage(err error) string {
	var le *service.LedgerError
	if errors.As(err, &le) {
		if le.Err == nil {
			return le.Kind.Error()
		}
		err = le.Err
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
