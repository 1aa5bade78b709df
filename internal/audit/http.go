package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPObserver наблюдатель, отправляющий на удалённый сервер
type HTTPObserver struct {
	url    string
	client *http.Client
	log    *zap.SugaredLogger
}

// NewHTTPObserver создаёт наблюдателя для отправки на HTTP endpoint
func NewHTTPObserver(url string, log *zap.SugaredLogger) *HTTPObserver {
	return &HTTPObserver{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		log: log,
	}
}

// Notify отправляет событие на удалённый сервер
func (h *HTTPObserver) Notify(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Errorw("audit http: ошибка сериализации", "error", err)
		return
	}

	resp, err := h.client.Post(h.url, "application/json", bytes.NewReader(data))
	if err != nil {
		h.log.Warnw("audit http: ошибка отправки", "url", h.url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		h.log.Warnw("audit http: сервер вернул ошибку", "url", h.url, "status", resp.StatusCode)
	}
}

// Close для HTTP ничего не делает
func (h *HTTPObserver) Close() error {
	return nil
}
