// Package shortener сервис коротких ссылок: создание, редирект, изменение и удаление.
//
// Мутации проходят проверку прав (access), затем пишутся в хранилище и
// инвалидируют кэш до ответа клиенту.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Popolzen/shortlink/internal/access"
	"github.com/Popolzen/shortlink/internal/audit"
	"github.com/Popolzen/shortlink/internal/cache"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/Popolzen/shortlink/internal/pool"
	"github.com/Popolzen/shortlink/internal/repository"
	"go.uber.org/zap"
)

// DedupPolicy что делать при повторном сокращении того же URL
type DedupPolicy string

const (
	// DedupMint всегда новый код
	DedupMint DedupPolicy = "mint"
	// DedupReuse вернуть существующую активную ссылку того же владельца
	DedupReuse DedupPolicy = "reuse"
)

// Options настройки сервиса
type Options struct {
	Dedup           DedupPolicy
	MaxCodeAttempts int
}

type URLService struct {
	repo    repository.Repository
	cache   cache.Cache
	audit   *audit.Publisher
	log     *zap.SugaredLogger
	opts    Options
	results *pool.Pool[*model.BatchResult]

	now     func() time.Time
	newCode func() (string, error)
	started time.Time
}

func NewURLService(repo repository.Repository, c cache.Cache, pub *audit.Publisher, log *zap.SugaredLogger, opts Options) *URLService {
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	if opts.Dedup == "" {
		opts.Dedup = DedupMint
	}
	return &URLService{
		repo:  repo,
		cache: c,
		audit: pub,
		log:   log,
		opts:  opts,
		results: pool.New(func() *model.BatchResult {
			return &model.BatchResult{}
		}),
		now:     time.Now,
		newCode: generateCode,
		started: time.Now(),
	}
}

// CreateInput параметры новой ссылки
type CreateInput struct {
	OriginalURL string
	CustomCode  string
	ExpiresAt   *time.Time
	Password    string
}

// Create сокращает URL от имени actor
func (s *URLService) Create(ctx context.Context, actor access.Actor, in CreateInput) (*model.ShortLink, error) {
	if in.OriginalURL == "" {
		return nil, model.BadRequest("No original URL provided")
	}
	ownerID, err := access.CanCreate(actor)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, ownerID, in)
}

func (s *URLService) create(ctx context.Context, ownerID *string, in CreateInput) (*model.ShortLink, error) {
	if err := ValidateURL(in.OriginalURL); err != nil {
		return nil, err
	}

	if s.opts.Dedup == DedupReuse && in.CustomCode == "" && in.ExpiresAt == nil && in.Password == "" {
		existing, err := s.repo.FindByOriginalURL(ctx, in.OriginalURL, ownerID)
		switch {
		case err == nil && !existing.Expired(s.now()) && existing.Password == "":
			return existing, nil
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return nil, fmt.Errorf("поиск существующей ссылки: %w", err)
		}
	}

	link := &model.ShortLink{
		OriginalURL: in.OriginalURL,
		OwnerID:     ownerID,
		CreatedAt:   s.now(),
		ExpiresAt:   in.ExpiresAt,
		Password:    in.Password,
	}
	created, err := s.createWithCode(ctx, link, in.CustomCode)
	if err != nil {
		return nil, err
	}

	s.publish(audit.ActionShorten, ownerID, created.ShortCode, created.OriginalURL)
	return created, nil
}

// CreateBatch пакетное сокращение для enterprise. Ошибка по элементу не прерывает пакет.
// Результаты берутся из пула, после ответа их нужно вернуть через ReleaseBatch.
func (s *URLService) CreateBatch(ctx context.Context, actor access.Actor, items []*model.BatchItem) ([]*model.BatchResult, error) {
	if len(items) == 0 {
		return nil, model.BadRequest("No URLs provided or empty array of URLs provided")
	}
	owner, err := access.CanBatch(actor)
	if err != nil {
		return nil, err
	}
	ownerID := &owner.ID

	results := make([]*model.BatchResult, 0, len(items))
	for _, item := range items {
		r := s.results.Get()
		results = append(results, r)

		if item == nil || item.OriginalURL == "" {
			r.Error = "No original URL provided"
			continue
		}
		r.OriginalURL = item.OriginalURL

		expiresAt, err := ParseExpiry(item.ExpiryDate)
		if err != nil {
			r.Error = err.Error()
			continue
		}

		link, err := s.create(ctx, ownerID, CreateInput{OriginalURL: item.OriginalURL, ExpiresAt: expiresAt})
		if err != nil {
			s.log.Debugw("элемент пакета отклонён", "url", item.OriginalURL, "error", err)
			r.Error = err.Error()
			continue
		}
		r.ShortCode = link.ShortCode
	}
	return results, nil
}

// ReleaseBatch возвращает результаты пакета в пул
func (s *URLService) ReleaseBatch(results []*model.BatchResult) {
	s.results.PutAll(results...)
}

// Delete мягко удаляет ссылку
func (s *URLService) Delete(ctx context.Context, actor access.Actor, code string) error {
	if code == "" {
		return model.BadRequest("No short code provided")
	}

	link, err := s.findActive(ctx, code)
	if err != nil {
		return err
	}
	if err := access.CanDelete(actor, link); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, code); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		// Хранилище могло успеть применить запись
		s.invalidate(ctx, code)
		return fmt.Errorf("удаление ссылки: %w", err)
	}
	s.invalidate(ctx, code)

	s.publish(audit.ActionDelete, actorID(actor), code, link.OriginalURL)
	return nil
}

// DeleteMany удаляет ссылки владельца, чужие и уже удалённые коды пропускаются
func (s *URLService) DeleteMany(ctx context.Context, actor access.Actor, codes []string) (int, error) {
	owner, err := access.RequireIdentity(actor)
	if err != nil {
		return 0, err
	}
	if len(codes) == 0 {
		return 0, model.BadRequest("No short codes provided")
	}

	deleted, err := s.repo.SoftDeleteMany(ctx, owner.ID, codes)
	if err != nil {
		s.invalidate(ctx, codes...)
		return 0, fmt.Errorf("массовое удаление: %w", err)
	}
	s.invalidate(ctx, deleted...)

	for _, code := range deleted {
		s.publish(audit.ActionDelete, &owner.ID, code, "")
	}
	return len(deleted), nil
}

// UpdateInput частичное обновление через PUT /update
type UpdateInput struct {
	ShortCode   string
	OriginalURL *string
	ExpiresAt   *time.Time
	CustomCode  *string
	Password    *string
	Undelete    bool
}

// Update меняет поля своей ссылки, в том числе удалённой (undelete)
func (s *URLService) Update(ctx context.Context, actor access.Actor, in UpdateInput) (*model.ShortLink, error) {
	if in.ShortCode == "" {
		return nil, model.BadRequest("No short code provided")
	}
	upd := model.LinkUpdate{
		OriginalURL: in.OriginalURL,
		ExpiresAt:   in.ExpiresAt,
		ShortCode:   in.CustomCode,
		Password:    in.Password,
		Undelete:    in.Undelete,
	}
	if upd.Empty() {
		return nil, model.BadRequest("No update provided")
	}

	owner, err := access.RequireIdentity(actor)
	if err != nil {
		return nil, err
	}

	link, err := s.repo.FindByCode(ctx, in.ShortCode)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("поиск ссылки: %w", err)
	}
	if !link.OwnedBy(owner.ID) {
		return nil, model.ErrForbidden
	}

	if upd.OriginalURL != nil {
		if err := ValidateURL(*upd.OriginalURL); err != nil {
			return nil, err
		}
	}
	if upd.ShortCode != nil && *upd.ShortCode != in.ShortCode {
		if err := ValidateCode(*upd.ShortCode); err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, *upd.ShortCode); err != nil {
			return nil, err
		}
	}

	return s.apply(ctx, owner, in.ShortCode, upd)
}

// Edit переименовывает свою активную ссылку. Защищённая паролем требует пароль.
func (s *URLService) Edit(ctx context.Context, actor access.Actor, code, newCode string, password *string) (*model.ShortLink, error) {
	if newCode == "" {
		return nil, model.BadRequest("No new short code provided")
	}
	owner, err := access.RequireIdentity(actor)
	if err != nil {
		return nil, err
	}

	link, err := s.findActive(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := access.CanEdit(actor, link, password); err != nil {
		return nil, err
	}

	if newCode != code {
		if err := ValidateCode(newCode); err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, newCode); err != nil {
			return nil, err
		}
	}

	return s.apply(ctx, owner, code, model.LinkUpdate{ShortCode: &newCode})
}

// apply пишет изменение и сбрасывает кэш под старым и новым кодом
func (s *URLService) apply(ctx context.Context, owner *model.Owner, code string, upd model.LinkUpdate) (*model.ShortLink, error) {
	updated, err := s.repo.Update(ctx, code, upd)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return nil, model.ErrNotFound
		case errors.Is(err, model.ErrCodeTaken):
			return nil, model.ErrCodeTaken
		}
		s.invalidate(ctx, code)
		if upd.ShortCode != nil && *upd.ShortCode != code {
			s.invalidate(ctx, *upd.ShortCode)
		}
		return nil, fmt.Errorf("обновление ссылки: %w", err)
	}

	s.invalidate(ctx, code)
	if updated.ShortCode != code {
		s.invalidate(ctx, updated.ShortCode)
	}

	s.publish(audit.ActionUpdate, &owner.ID, updated.ShortCode, updated.OriginalURL)
	return updated, nil
}

// ListOwned все ссылки владельца ключа, включая удалённые
func (s *URLService) ListOwned(ctx context.Context, actor access.Actor) ([]*model.ShortLink, error) {
	owner, err := access.RequireIdentity(actor)
	if err != nil {
		return nil, err
	}

	links, err := s.repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("список ссылок: %w", err)
	}
	if links == nil {
		links = []*model.ShortLink{}
	}
	return links, nil
}

// AddDomain регистрирует собственный домен enterprise-клиента
func (s *URLService) AddDomain(ctx context.Context, actor access.Actor, domain string) error {
	owner, err := access.CanAddDomain(actor)
	if err != nil {
		return err
	}

	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return model.BadRequest("No domain provided")
	}
	if strings.ContainsAny(domain, "/:@ ") {
		return model.BadRequest("Invalid domain")
	}

	err = s.repo.AddDomain(ctx, &model.CustomDomain{Domain: domain, OwnerID: owner.ID, CreatedAt: s.now()})
	if err != nil {
		if errors.Is(err, model.ErrDomainTaken) {
			return model.ErrDomainTaken
		}
		return fmt.Errorf("сохранение домена: %w", err)
	}
	return nil
}

// ResolveOwner владелец по ключу. Неизвестный ключ: nil без ошибки.
func (s *URLService) ResolveOwner(ctx context.Context, apiKey string) (*model.Owner, error) {
	owner, err := s.repo.FindOwnerByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("поиск владельца: %w", err)
	}
	return owner, nil
}

func (s *URLService) Stats(ctx context.Context) (model.Stats, error) {
	return s.repo.Stats(ctx)
}

// Health проверяет хранилище и кэш
func (s *URLService) Health(ctx context.Context) (model.Healthcheck, error) {
	hc := model.Healthcheck{
		Uptime:    s.now().Sub(s.started).Seconds(),
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.repo.Ping(ctx); err != nil {
		return hc, fmt.Errorf("хранилище недоступно: %w", err)
	}
	if err := s.cache.Ping(ctx); err != nil {
		return hc, fmt.Errorf("кэш недоступен: %w", err)
	}
	return hc, nil
}

// findActive ссылка, которая не удалена
func (s *URLService) findActive(ctx context.Context, code string) (*model.ShortLink, error) {
	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("поиск ссылки: %w", err)
	}
	if link.Deleted() {
		return nil, model.ErrNotFound
	}
	return link, nil
}

// invalidate сбрасывает кэш. Запись в хранилище уже прошла, поэтому ошибка только логируется.
func (s *URLService) invalidate(ctx context.Context, codes ...string) {
	for _, code := range codes {
		if err := s.cache.Invalidate(ctx, code); err != nil {
			s.log.Errorw("кэш не инвалидирован, возможно чтение устаревшей записи", "code", code, "error", err)
		}
	}
}

func (s *URLService) publish(action audit.Action, ownerID *string, code, url string) {
	if s.audit == nil {
		return
	}
	s.audit.Publish(audit.NewEvent(action, ownerID, code, url))
}

func actorID(a access.Actor) *string {
	if a.Owner == nil {
		return nil
	}
	return &a.Owner.ID
}

// ValidateURL абсолютный http(s) URL с хостом
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.ErrInvalidURL
	}
	return nil
}

// ParseExpiry разбирает expiry_date: RFC 3339 или дата YYYY-MM-DD. nil: без срока.
func ParseExpiry(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, *raw); err == nil {
			return &t, nil
		}
	}
	return nil, model.ErrInvalidExpiry
}
