package repository

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_repository.go -package=mocks

import (
	"context"
	"time"

	"github.com/Popolzen/shortlink/internal/model"
)

// LinkRepository хранилище коротких ссылок.
// Все операции атомарны в пределах одной записи.
type LinkRepository interface {
	// FindByCode возвращает запись, в том числе удалённую. model.ErrNotFound если нет.
	FindByCode(ctx context.Context, code string) (*model.ShortLink, error)
	// FindByOriginalURL самая новая ссылка владельца (nil: анонимная) на тот же URL,
	// которую можно выдать повторно: не удалена, без пароля, срок не истёк.
	FindByOriginalURL(ctx context.Context, originalURL string, ownerID *string) (*model.ShortLink, error)
	// Create сохраняет новую запись. model.ErrCodeTaken если код занят.
	Create(ctx context.Context, link *model.ShortLink) (*model.ShortLink, error)
	Update(ctx context.Context, code string, upd model.LinkUpdate) (*model.ShortLink, error)
	SoftDelete(ctx context.Context, code string) error
	// SoftDeleteMany удаляет ссылки владельца и возвращает реально удалённые коды.
	SoftDeleteMany(ctx context.Context, ownerID string, codes []string) ([]string, error)
	IncrementClick(ctx context.Context, code string, at time.Time) error
	ListByOwner(ctx context.Context, ownerID string) ([]*model.ShortLink, error)
	Ping(ctx context.Context) error
	Close() error
}

// OwnerRepository владельцы ключей и их домены
type OwnerRepository interface {
	// FindOwnerByAPIKey возвращает model.ErrNotFound для неизвестного ключа.
	FindOwnerByAPIKey(ctx context.Context, apiKey string) (*model.Owner, error)
	SaveOwner(ctx context.Context, owner *model.Owner) error
	AddDomain(ctx context.Context, domain *model.CustomDomain) error
	FindDomain(ctx context.Context, domain string) (*model.CustomDomain, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Repository всё хранилище целиком
type Repository interface {
	LinkRepository
	OwnerRepository
}
