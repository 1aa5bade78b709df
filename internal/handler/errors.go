package handler

import (
	"errors"
	"net/http"

	"github.com/Popolzen/shortlink/internal/model"
	"github.com/gin-gonic/gin"
)

// Status HTTP-код для ошибки сервиса
func Status(err error) int {
	switch {
	case errors.Is(err, model.ErrBadRequest),
		errors.Is(err, model.ErrInvalidURL),
		errors.Is(err, model.ErrInvalidCode),
		errors.Is(err, model.ErrInvalidExpiry):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthorized),
		errors.Is(err, model.ErrInvalidCredential),
		errors.Is(err, model.ErrPasswordRequired):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden),
		errors.Is(err, model.ErrInvalidPassword),
		errors.Is(err, model.ErrBlacklisted):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrExpired):
		return http.StatusGone
	case errors.Is(err, model.ErrCodeTaken),
		errors.Is(err, model.ErrDomainTaken):
		return http.StatusConflict
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeError отвечает JSON {"error": ...}. "Не найдено" всегда уходит текстом.
func writeError(c *gin.Context, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if errors.Is(err, model.ErrNotFound) {
		c.String(status, model.ErrNotFound.Error())
		return
	}
	c.JSON(status, model.ErrorResponse{Error: err.Error()})
}

// writeRedirectError на редиректе состояния ссылки отдаются текстом
func writeRedirectError(c *gin.Context, err error) {
	for _, plain := range []error{model.ErrExpired, model.ErrPasswordRequired, model.ErrInvalidPassword} {
		if errors.Is(err, plain) {
			c.String(Status(err), plain.Error())
			return
		}
	}
	writeError(c, err)
}
