package filestorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Popolzen/shortlink/internal/model"
	"github.com/Popolzen/shortlink/internal/repository/memory"
)

// fileOwner владелец в файле. В model.Owner ключ скрыт от JSON.
type fileOwner struct {
	ID     string     `json:"id"`
	APIKey string     `json:"api_key"`
	Tier   model.Tier `json:"tier"`
}

// fileLink ссылка в файле. Пароль в model.ShortLink скрыт от JSON.
type fileLink struct {
	*model.ShortLink
	Password string `json:"password,omitempty"`
}

// snapshot формат файла хранилища
type snapshot struct {
	Links   []fileLink            `json:"links"`
	Owners  []fileOwner           `json:"owners"`
	Domains []*model.CustomDomain `json:"domains"`
}

// URLRepository держит данные в памяти и сбрасывает снимок в файл после каждой мутации.
// Мутация применяется к памяти только вместе с успешной записью файла.
type URLRepository struct {
	*memory.URLRepository
	path string
	mu   sync.Mutex // сериализует мутации и запись файла
}

// NewURLRepository открывает хранилище. Отсутствующий или пустой файл даёт пустое хранилище,
// нечитаемый файл возвращает ошибку, чтобы следующая запись его не затёрла.
func NewURLRepository(path string) (*URLRepository, error) {
	repo := &URLRepository{
		URLRepository: memory.NewURLRepository(),
		path:          path,
	}

	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

// load загружает данные из файла в память.
func (r *URLRepository) load() error {
	file, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("ошибка чтения файла: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("ошибка десериализации JSON %s: %w", r.path, err)
	}

	links := make([]*model.ShortLink, 0, len(snap.Links))
	for _, fl := range snap.Links {
		if fl.ShortLink == nil {
			continue
		}
		fl.ShortLink.Password = fl.Password
		links = append(links, fl.ShortLink)
	}
	owners := make([]*model.Owner, 0, len(snap.Owners))
	for _, fo := range snap.Owners {
		owners = append(owners, &model.Owner{ID: fo.ID, APIKey: fo.APIKey, Tier: fo.Tier})
	}
	r.Restore(links, owners, snap.Domains)

	return nil
}

// save пишет снимок во временный файл и атомарно подменяет основной. Вызывается под r.mu.
func (r *URLRepository) save() error {
	links, owners, domains := r.Snapshot()
	snap := snapshot{
		Links:   make([]fileLink, 0, len(links)),
		Owners:  make([]fileOwner, 0, len(owners)),
		Domains: domains,
	}
	for _, l := range links {
		snap.Links = append(snap.Links, fileLink{ShortLink: l, Password: l.Password})
	}
	for _, o := range owners {
		snap.Owners = append(snap.Owners, fileOwner{ID: o.ID, APIKey: o.APIKey, Tier: o.Tier})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("ошибка открытия файла: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ошибка замены файла: %w", err)
	}
	return nil
}

// commit применяет мутацию и сохраняет файл. Если файл не записан, память откатывается.
func (r *URLRepository) commit(apply func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	links, owners, domains := r.Snapshot()
	if err := apply(); err != nil {
		return err
	}
	if err := r.save(); err != nil {
		r.Restore(links, owners, domains)
		return err
	}
	return nil
}

func (r *URLRepository) Create(ctx context.Context, link *model.ShortLink) (*model.ShortLink, error) {
	var created *model.ShortLink
	err := r.commit(func() (err error) {
		created, err = r.URLRepository.Create(ctx, link)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *URLRepository) Update(ctx context.Context, code string, upd model.LinkUpdate) (*model.ShortLink, error) {
	var updated *model.ShortLink
	err := r.commit(func() (err error) {
		updated, err = r.URLRepository.Update(ctx, code, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *URLRepository) SoftDelete(ctx context.Context, code string) error {
	return r.commit(func() error {
		return r.URLRepository.SoftDelete(ctx, code)
	})
}

func (r *URLRepository) SoftDeleteMany(ctx context.Context, ownerID string, codes []string) ([]string, error) {
	var deleted []string
	err := r.commit(func() (err error) {
		deleted, err = r.URLRepository.SoftDeleteMany(ctx, ownerID, codes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// IncrementClick не сбрасывает файл на каждый клик, это делает Close.
// Блокировка нужна, чтобы откат неудачной мутации не потерял клик.
func (r *URLRepository) IncrementClick(ctx context.Context, code string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.URLRepository.IncrementClick(ctx, code, at)
}

func (r *URLRepository) SaveOwner(ctx context.Context, owner *model.Owner) error {
	return r.commit(func() error {
		return r.URLRepository.SaveOwner(ctx, owner)
	})
}

func (r *URLRepository) AddDomain(ctx context.Context, domain *model.CustomDomain) error {
	return r.commit(func() error {
		return r.URLRepository.AddDomain(ctx, domain)
	})
}

// Ping проверяет, что каталог файла доступен
func (r *URLRepository) Ping(context.Context) error {
	_, err := os.Stat(filepath.Dir(r.path))
	return err
}

// Close сохраняет накопленные счётчики кликов
func (r *URLRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save()
}
