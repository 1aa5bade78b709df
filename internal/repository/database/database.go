package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Popolzen/shortlink/internal/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const linkColumns = `short_code, original_url, owner_id, created_at, last_clicked_at,
	click_count, expires_at, deleted_at, password`

// URLRepository хранилище ссылок в PostgreSQL
type URLRepository struct {
	DB *sql.DB
}

func NewURLRepository(db *sql.DB) *URLRepository {
	return &URLRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*model.ShortLink, error) {
	var (
		link        model.ShortLink
		ownerID     sql.NullString
		lastClicked sql.NullTime
		expiresAt   sql.NullTime
		deletedAt   sql.NullTime
	)

	err := row.Scan(&link.ShortCode, &link.OriginalURL, &ownerID, &link.CreatedAt, &lastClicked,
		&link.ClickCount, &expiresAt, &deletedAt, &link.Password)
	if err != nil {
		return nil, err
	}

	if ownerID.Valid {
		link.OwnerID = &ownerID.String
	}
	if lastClicked.Valid {
		link.LastClickedAt = &lastClicked.Time
	}
	if expiresAt.Valid {
		link.ExpiresAt = &expiresAt.Time
	}
	if deletedAt.Valid {
		link.DeletedAt = &deletedAt.Time
	}
	return &link, nil
}

// isUniqueViolation нарушение уникального ключа
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// FindByCode получает ссылку по короткому коду, включая удалённые
func (r *URLRepository) FindByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	query := `SELECT ` + linkColumns + ` FROM short_links WHERE short_code = $1`

	link, err := scanLink(r.DB.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при получении URL: %w", err)
	}
	return link, nil
}

// FindByOriginalURL самая новая ссылка владельца на URL без пароля и с неистёкшим сроком
func (r *URLRepository) FindByOriginalURL(ctx context.Context, originalURL string, ownerID *string) (*model.ShortLink, error) {
	query := `SELECT ` + linkColumns + ` FROM short_links
		WHERE original_url = $1 AND owner_id IS NOT DISTINCT FROM $2 AND deleted_at IS NULL
			AND password = '' AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC, short_code DESC LIMIT 1`

	link, err := scanLink(r.DB.QueryRowContext(ctx, query, originalURL, nullString(ownerID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при поиске URL: %w", err)
	}
	return link, nil
}

// Create вставляет ссылку. Конфликт по short_code: model.ErrCodeTaken, запись не перезаписывается.
func (r *URLRepository) Create(ctx context.Context, link *model.ShortLink) (*model.ShortLink, error) {
	createdAt := link.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
	INSERT INTO short_links (short_code, original_url, owner_id, created_at, expires_at, password)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + linkColumns

	created, err := scanLink(r.DB.QueryRowContext(ctx, query,
		link.ShortCode, link.OriginalURL, nullString(link.OwnerID), createdAt, nullTime(link.ExpiresAt), link.Password))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrCodeTaken
		}
		return nil, fmt.Errorf("ошибка при сохранении URL: %w", err)
	}
	return created, nil
}

// Update частично обновляет ссылку одним запросом
func (r *URLRepository) Update(ctx context.Context, code string, upd model.LinkUpdate) (*model.ShortLink, error) {
	var (
		sets []string
		args []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(clause, len(args)))
	}

	if upd.OriginalURL != nil {
		add("original_url = $%d", *upd.OriginalURL)
	}
	if upd.ExpiresAt != nil {
		add("expires_at = $%d", *upd.ExpiresAt)
	}
	if upd.Password != nil {
		add("password = $%d", *upd.Password)
	}
	if upd.ShortCode != nil {
		add("short_code = $%d", *upd.ShortCode)
	}
	if upd.Undelete {
		sets = append(sets, "deleted_at = NULL")
	}
	if len(sets) == 0 {
		return r.FindByCode(ctx, code)
	}

	args = append(args, code)
	query := fmt.Sprintf(`UPDATE short_links SET %s WHERE short_code = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), linkColumns)

	updated, err := scanLink(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrNotFound
		case isUniqueViolation(err):
			return nil, model.ErrCodeTaken
		}
		return nil, fmt.Errorf("ошибка при обновлении URL: %w", err)
	}
	return updated, nil
}

// SoftDelete помечает ссылку удалённой
func (r *URLRepository) SoftDelete(ctx context.Context, code string) error {
	query := `UPDATE short_links SET deleted_at = NOW() WHERE short_code = $1 AND deleted_at IS NULL`

	res, err := r.DB.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("ошибка при удалении URL: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка при удалении URL: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SoftDeleteMany помечает удалёнными ссылки владельца из списка
func (r *URLRepository) SoftDeleteMany(ctx context.Context, ownerID string, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	query := `
	UPDATE short_links SET deleted_at = NOW()
	WHERE owner_id = $1 AND short_code = ANY($2) AND deleted_at IS NULL
	RETURNING short_code`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("ошибка при удалении URL: %w", err)
	}
	defer rows.Close()

	deleted := make([]string, 0, len(codes))
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		deleted = append(deleted, code)
	}
	return deleted, rows.Err()
}

// IncrementClick атомарно увеличивает счётчик кликов
func (r *URLRepository) IncrementClick(ctx context.Context, code string, at time.Time) error {
	query := `UPDATE short_links SET click_count = click_count + 1, last_clicked_at = $2 WHERE short_code = $1`

	res, err := r.DB.ExecContext(ctx, query, code, at)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении счётчика: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListByOwner возвращает все ссылки пользователя
func (r *URLRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.ShortLink, error) {
	query := `SELECT ` + linkColumns + ` FROM short_links WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса: %w", err)
	}
	defer rows.Close()

	var links []*model.ShortLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *URLRepository) FindOwnerByAPIKey(ctx context.Context, apiKey string) (*model.Owner, error) {
	var owner model.Owner
	query := `SELECT id, api_key, tier FROM owners WHERE api_key = $1`

	err := r.DB.QueryRowContext(ctx, query, apiKey).Scan(&owner.ID, &owner.APIKey, &owner.Tier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при поиске владельца: %w", err)
	}
	return &owner, nil
}

// SaveOwner создаёт или обновляет владельца по id
func (r *URLRepository) SaveOwner(ctx context.Context, owner *model.Owner) error {
	query := `
	INSERT INTO owners (id, api_key, tier)
	VALUES ($1, $2, $3)
	ON CONFLICT (id)
	DO UPDATE SET
		api_key = EXCLUDED.api_key,
		tier = EXCLUDED.tier`

	if _, err := r.DB.ExecContext(ctx, query, owner.ID, owner.APIKey, string(owner.Tier)); err != nil {
		return fmt.Errorf("ошибка при сохранении владельца: %w", err)
	}
	return nil
}

func (r *URLRepository) AddDomain(ctx context.Context, domain *model.CustomDomain) error {
	createdAt := domain.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO custom_domains (domain, owner_id, created_at) VALUES ($1, $2, $3)`
	if _, err := r.DB.ExecContext(ctx, query, domain.Domain, domain.OwnerID, createdAt); err != nil {
		if isUniqueViolation(err) {
			return model.ErrDomainTaken
		}
		return fmt.Errorf("ошибка при сохранении домена: %w", err)
	}
	return nil
}

func (r *URLRepository) FindDomain(ctx context.Context, domain string) (*model.CustomDomain, error) {
	var d model.CustomDomain
	query := `SELECT domain, owner_id, created_at FROM custom_domains WHERE domain = $1`

	err := r.DB.QueryRowContext(ctx, query, domain).Scan(&d.Domain, &d.OwnerID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при поиске домена: %w", err)
	}
	return &d, nil
}

func (r *URLRepository) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats

	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(click_count), 0) FROM short_links WHERE deleted_at IS NULL`,
	).Scan(&stats.URLs, &stats.Clicks)
	if err != nil {
		return stats, fmt.Errorf("ошибка подсчёта ссылок: %w", err)
	}

	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM owners`).Scan(&stats.Owners); err != nil {
		return stats, fmt.Errorf("ошибка подсчёта владельцев: %w", err)
	}
	return stats, nil
}

func (r *URLRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *URLRepository) Close() error {
	return r.DB.Close()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
