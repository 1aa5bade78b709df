// Package handler HTTP-обработчики сервиса коротких ссылок.
package handler

import (
	"net/http"

	"github.com/Popolzen/shortlink/internal/middleware/auth"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/Popolzen/shortlink/internal/service/shortener"
	"github.com/gin-gonic/gin"
)

const invalidBody = "Invalid request body"

// ShortenHandler создает короткую ссылку
func ShortenHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.ShortenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: invalidBody})
			return
		}

		expiresAt, err := shortener.ParseExpiry(req.ExpiryDate)
		if err != nil {
			writeError(c, err)
			return
		}

		link, err := urlService.Create(c.Request.Context(), auth.ActorFrom(c), shortener.CreateInput{
			OriginalURL: req.OriginalURL,
			CustomCode:  req.CustomCode,
			ExpiresAt:   expiresAt,
			Password:    req.Password,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusCreated, model.ShortenResponse{ShortCode: link.ShortCode})
	}
}

// RedirectHandler перенаправляет по короткому коду
func RedirectHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var password *string
		if p, ok := c.GetQuery("password"); ok {
			password = &p
		}

		target, err := urlService.Resolve(c.Request.Context(), c.Query("code"), password)
		if err != nil {
			writeRedirectError(c, err)
			return
		}

		c.Redirect(http.StatusFound, target)
	}
}

// DeleteHandler мягко удаляет ссылку
func DeleteHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := urlService.Delete(c.Request.Context(), auth.ActorFrom(c), c.Query("code")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// UpdateHandler частично обновляет свою ссылку
func UpdateHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: invalidBody})
			return
		}

		expiresAt, err := shortener.ParseExpiry(req.ExpiryDate)
		if err != nil {
			writeError(c, err)
			return
		}

		_, err = urlService.Update(c.Request.Context(), auth.ActorFrom(c), shortener.UpdateInput{
			ShortCode:   req.ShortCode,
			OriginalURL: nonEmpty(req.OriginalURL),
			ExpiresAt:   expiresAt,
			CustomCode:  nonEmpty(req.CustomCode),
			Password:    nonEmpty(req.Password),
			Undelete:    req.Undelete,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, model.MessageResponse{Message: "URL updated successfully"})
	}
}

// EditHandler меняет короткий код своей ссылки
func EditHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.EditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: invalidBody})
			return
		}

		_, err := urlService.Edit(c.Request.Context(), auth.ActorFrom(c), c.Param("short_code"), req.NewShortCode, req.Password)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, model.MessageResponse{Message: "Short code updated successfully"})
	}
}

// BatchHandler пакетно сокращает URL. 201, если удался хотя бы один элемент.
func BatchHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: invalidBody})
			return
		}

		results, err := urlService.CreateBatch(c.Request.Context(), auth.ActorFrom(c), req.URLs)
		if err != nil {
			writeError(c, err)
			return
		}
		defer urlService.ReleaseBatch(results)

		status := http.StatusBadRequest
		for _, r := range results {
			if r.ShortCode != "" {
				status = http.StatusCreated
				break
			}
		}
		c.JSON(status, model.BatchResponse{URLs: results})
	}
}

// ListHandler ссылки владельца ключа
func ListHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		links, err := urlService.ListOwned(c.Request.Context(), auth.ActorFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, model.URLsResponse{URLs: links})
	}
}

// DeleteManyHandler удаляет список своих кодов
func DeleteManyHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var codes []string
		if err := c.ShouldBindJSON(&codes); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: invalidBody})
			return
		}

		n, err := urlService.DeleteMany(c.Request.Context(), auth.ActorFrom(c), codes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, model.DeleteManyResponse{Deleted: n})
	}
}

// DomainHandler регистрирует собственный домен
func DomainHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.DomainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: invalidBody})
			return
		}

		if err := urlService.AddDomain(c.Request.Context(), auth.ActorFrom(c), req.Domain); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, model.MessageResponse{Message: "Domain added successfully"})
	}
}

// HealthHandler проверка живости и доступности хранилища
func HealthHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		hc, err := urlService.Health(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, model.HealthResponse{
				Status:  "error",
				Message: "Service is unhealthy",
				Error:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, model.HealthResponse{
			Status:      "ok",
			Message:     "Service is healthy",
			Healthcheck: &hc,
		})
	}
}

// StatsHandler сводка для доверенной подсети
func StatsHandler(urlService *shortener.URLService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := urlService.Stats(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
