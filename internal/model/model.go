package model

import (
	"encoding/json"
	"time"
)

// Tier уровень возможностей владельца ключа
type Tier string

const (
	TierFree       Tier = "free"
	TierHobby      Tier = "hobby"
	TierEnterprise Tier = "enterprise"
)

// Valid проверяет, что уровень известен
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierHobby, TierEnterprise:
		return true
	}
	return false
}

// Owner владелец API-ключа
type Owner struct {
	ID     string `json:"id" yaml:"id"`
	APIKey string `json:"-" yaml:"api_key"`
	Tier   Tier   `json:"tier" yaml:"tier"`
}

// ShortLink короткая ссылка со всем её состоянием
type ShortLink struct {
	ShortCode     string     `json:"short_code"`
	OriginalURL   string     `json:"original_url"`
	OwnerID       *string    `json:"owner_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	ClickCount    int64      `json:"click_count"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	Password      string     `json:"-"`
}

// Deleted ссылка помечена удалённой
func (l *ShortLink) Deleted() bool {
	return l.DeletedAt != nil
}

// Expired срок жизни ссылки истёк к моменту now
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// OwnedBy ссылка принадлежит владельцу с данным id
func (l *ShortLink) OwnedBy(ownerID string) bool {
	return l.OwnerID != nil && *l.OwnerID == ownerID
}

// Cached снимок ссылки для кэша редиректов
func (l *ShortLink) Cached() *CachedLink {
	return &CachedLink{
		URL:       l.OriginalURL,
		ExpiresAt: l.ExpiresAt,
		Password:  l.Password,
	}
}

// CachedLink то, что хранится в кэше: цель редиректа и всё, что нужно для повторной проверки
type CachedLink struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Password  string     `json:"password,omitempty"`
}

// Expired срок жизни закэшированной ссылки истёк
func (c *CachedLink) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// LinkUpdate частичное обновление ссылки. nil означает "не менять".
type LinkUpdate struct {
	OriginalURL *string
	ExpiresAt   *time.Time
	ShortCode   *string
	Password    *string
	Undelete    bool
}

// Empty в обновлении нет ни одного поля
func (u LinkUpdate) Empty() bool {
	return u.OriginalURL == nil && u.ExpiresAt == nil && u.ShortCode == nil && u.Password == nil && !u.Undelete
}

// CustomDomain собственный домен enterprise-клиента
type CustomDomain struct {
	Domain    string    `json:"domain"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats сводка для внутреннего эндпоинта
type Stats struct {
	URLs   int   `json:"urls"`
	Owners int   `json:"owners"`
	Clicks int64 `json:"clicks"`
}

// ShortenRequest тело POST /shorten
type ShortenRequest struct {
	OriginalURL string  `json:"original_url"`
	CustomCode  string  `json:"custom_code,omitempty"`
	ExpiryDate  *string `json:"expiry_date,omitempty"`
	Password    string  `json:"password,omitempty"`
}

// ShortenResponse ответ POST /shorten
type ShortenResponse struct {
	ShortCode string `json:"short_code"`
}

// UpdateRequest тело PUT /update
type UpdateRequest struct {
	ShortCode   string  `json:"short_code"`
	OriginalURL string  `json:"original_url,omitempty"`
	ExpiryDate  *string `json:"expiry_date,omitempty"`
	CustomCode  string  `json:"custom_code,omitempty"`
	Undelete    bool    `json:"undelete,omitempty"`
	Password    string  `json:"password,omitempty"`
}

// EditRequest тело PUT /edit/:short_code
type EditRequest struct {
	NewShortCode string  `json:"new_short_code"`
	Password     *string `json:"password,omitempty"`
}

// BatchItem элемент пакетного запроса. Допускается объект или просто строка с URL.
type BatchItem struct {
	OriginalURL string  `json:"original_url"`
	ExpiryDate  *string `json:"expiry_date,omitempty"`
}

// UnmarshalJSON принимает как {"original_url": ...}, так и "https://..."
func (b *BatchItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.OriginalURL = s
		return nil
	}
	type plain BatchItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = BatchItem(p)
	return nil
}

// BatchRequest тело POST /batch-shorten
type BatchRequest struct {
	URLs []*BatchItem `json:"urls"`
}

// BatchResult результат по одному элементу пакета
type BatchResult struct {
	OriginalURL string `json:"original_url"`
	ShortCode   string `json:"short_code,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Reset нужен для переиспользования через pool
func (b *BatchResult) Reset() {
	b.OriginalURL = ""
	b.ShortCode = ""
	b.Error = ""
}

// BatchResponse ответ POST /batch-shorten
type BatchResponse struct {
	URLs []*BatchResult `json:"urls"`
}

// URLsResponse ответ GET /urls
type URLsResponse struct {
	URLs []*ShortLink `json:"urls"`
}

// DomainRequest тело POST /domains
type DomainRequest struct {
	Domain string `json:"domain"`
}

// MessageResponse ответ с сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse JSON-ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// Healthcheck сведения о процессе для GET /health
type Healthcheck struct {
	Uptime    float64 `json:"uptime"`
	Timestamp int64   `json:"timestamp"`
}

// HealthResponse ответ GET /health
type HealthResponse struct {
	Status      string       `json:"status"`
	Message     string       `json:"message"`
	Healthcheck *Healthcheck `json:"healthcheck,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// DeleteManyResponse ответ DELETE /urls
type DeleteManyResponse struct {
	Deleted int `json:"deleted"`
}
