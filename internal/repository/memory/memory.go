package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Popolzen/shortlink/internal/model"
)

// URLRepository хранит ссылки и владельцев в памяти процесса
type URLRepository struct {
	mu      sync.RWMutex
	links   map[string]*model.ShortLink
	owners  map[string]*model.Owner // по API-ключу
	domains map[string]*model.CustomDomain
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		links:   map[string]*model.ShortLink{},
		owners:  map[string]*model.Owner{},
		domains: map[string]*model.CustomDomain{},
	}
}

// FindByCode возвращает копию записи
func (r *URLRepository) FindByCode(_ context.Context, code string) (*model.ShortLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[code]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyLink(link), nil
}

// FindByOriginalURL самая новая ссылка владельца на URL, пригодная для повторного использования
func (r *URLRepository) FindByOriginalURL(_ context.Context, originalURL string, ownerID *string) (*model.ShortLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var found *model.ShortLink
	for _, link := range r.links {
		if link.OriginalURL != originalURL || !sameOwner(link.OwnerID, ownerID) {
			continue
		}
		if link.Deleted() || link.Expired(now) || link.Password != "" {
			continue
		}
		if found == nil || newer(link, found) {
			found = link
		}
	}
	if found == nil {
		return nil, model.ErrNotFound
	}
	return copyLink(found), nil
}

// newer порядок по времени создания, при равенстве по коду
func newer(a, b *model.ShortLink) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ShortCode > b.ShortCode
}

func (r *URLRepository) Create(_ context.Context, link *model.ShortLink) (*model.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.ShortCode]; exists {
		return nil, model.ErrCodeTaken
	}
	stored := copyLink(link)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.links[stored.ShortCode] = stored
	return copyLink(stored), nil
}

func (r *URLRepository) Update(_ context.Context, code string, upd model.LinkUpdate) (*model.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return nil, model.ErrNotFound
	}

	// Переименование проверяем до любых изменений
	if upd.ShortCode != nil && *upd.ShortCode != code {
		if _, taken := r.links[*upd.ShortCode]; taken {
			return nil, model.ErrCodeTaken
		}
	}

	if upd.OriginalURL != nil {
		link.OriginalURL = *upd.OriginalURL
	}
	if upd.ExpiresAt != nil {
		t := *upd.ExpiresAt
		link.ExpiresAt = &t
	}
	if upd.Password != nil {
		link.Password = *upd.Password
	}
	if upd.Undelete {
		link.DeletedAt = nil
	}
	if upd.ShortCode != nil && *upd.ShortCode != code {
		delete(r.links, code)
		link.ShortCode = *upd.ShortCode
		r.links[link.ShortCode] = link
	}

	return copyLink(link), nil
}

func (r *URLRepository) SoftDelete(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok || link.Deleted() {
		return model.ErrNotFound
	}
	now := time.Now()
	link.DeletedAt = &now
	return nil
}

func (r *URLRepository) SoftDeleteMany(_ context.Context, ownerID string, codes []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	deleted := make([]string, 0, len(codes))
	for _, code := range codes {
		link, ok := r.links[code]
		if !ok || link.Deleted() || !link.OwnedBy(ownerID) {
			continue
		}
		link.DeletedAt = &now
		deleted = append(deleted, code)
	}
	return deleted, nil
}

func (r *URLRepository) IncrementClick(_ context.Context, code string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return model.ErrNotFound
	}
	link.ClickCount++
	link.LastClickedAt = &at
	return nil
}

// ListByOwner ссылки владельца, новые первыми
func (r *URLRepository) ListByOwner(_ context.Context, ownerID string) ([]*model.ShortLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.ShortLink
	for _, link := range r.links {
		if link.OwnedBy(ownerID) {
			result = append(result, copyLink(link))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *URLRepository) FindOwnerByAPIKey(_ context.Context, apiKey string) (*model.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[apiKey]
	if !ok {
		return nil, model.ErrNotFound
	}
	o := *owner
	return &o, nil
}

func (r *URLRepository) SaveOwner(_ context.Context, owner *model.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := *owner
	r.owners[owner.APIKey] = &o
	return nil
}

func (r *URLRepository) AddDomain(_ context.Context, domain *model.CustomDomain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.domains[domain.Domain]; exists {
		return model.ErrDomainTaken
	}
	d := *domain
	r.domains[domain.Domain] = &d
	return nil
}

func (r *URLRepository) FindDomain(_ context.Context, domain string) (*model.CustomDomain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.domains[domain]
	if !ok {
		return nil, model.ErrNotFound
	}
	found := *d
	return &found, nil
}

func (r *URLRepository) Stats(_ context.Context) (model.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := model.Stats{Owners: len(r.owners)}
	for _, link := range r.links {
		if link.Deleted() {
			continue
		}
		stats.URLs++
		stats.Clicks += link.ClickCount
	}
	return stats, nil
}

func (r *URLRepository) Ping(context.Context) error {
	return nil
}

func (r *URLRepository) Close() error {
	return nil
}

// Snapshot все записи, используется файловым хранилищем
func (r *URLRepository) Snapshot() ([]*model.ShortLink, []*model.Owner, []*model.CustomDomain) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]*model.ShortLink, 0, len(r.links))
	for _, l := range r.links {
		links = append(links, copyLink(l))
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ShortCode < links[j].ShortCode })

	owners := make([]*model.Owner, 0, len(r.owners))
	for _, o := range r.owners {
		owner := *o
		owners = append(owners, &owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].ID < owners[j].ID })

	domains := make([]*model.CustomDomain, 0, len(r.domains))
	for _, d := range r.domains {
		domain := *d
		domains = append(domains, &domain)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i].Domain < domains[j].Domain })

	return links, owners, domains
}

// Restore заменяет всё содержимое переданными записями, без проверок
func (r *URLRepository) Restore(links []*model.ShortLink, owners []*model.Owner, domains []*model.CustomDomain) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.links = make(map[string]*model.ShortLink, len(links))
	r.owners = make(map[string]*model.Owner, len(owners))
	r.domains = make(map[string]*model.CustomDomain, len(domains))

	for _, l := range links {
		r.links[l.ShortCode] = copyLink(l)
	}
	for _, o := range owners {
		owner := *o
		r.owners[o.APIKey] = &owner
	}
	for _, d := range domains {
		domain := *d
		r.domains[d.Domain] = &domain
	}
}

func copyLink(l *model.ShortLink) *model.ShortLink {
	c := *l
	if l.OwnerID != nil {
		id := *l.OwnerID
		c.OwnerID = &id
	}
	if l.LastClickedAt != nil {
		t := *l.LastClickedAt
		c.LastClickedAt = &t
	}
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	if l.DeletedAt != nil {
		t := *l.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func sameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
