package shortener

import (
	"context"
	"errors"
	"fmt"

	"github.com/Popolzen/shortlink/internal/access"
	"github.com/Popolzen/shortlink/internal/audit"
	"github.com/Popolzen/shortlink/internal/model"
)

// Resolve возвращает адрес для редиректа.
//
// Порядок: кэш, при промахе хранилище, срок жизни, пароль, счётчик кликов,
// заполнение кэша. Запись в кэше содержит срок и пароль, поэтому проверки
// выполняются и при попадании. После заполнения кэша запись перечитывается:
// мутация, успевшая между чтением и Set, снимает её из кэша.
func (s *URLService) Resolve(ctx context.Context, code string, password *string) (string, error) {
	if code == "" {
		return "", model.BadRequest("No short code provided")
	}

	entry, hit, err := s.cache.Get(ctx, code)
	if err != nil {
		return "", fmt.Errorf("чтение кэша: %w", err)
	}

	if !hit {
		link, err := s.repo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return "", model.ErrNotFound
			}
			return "", fmt.Errorf("поиск ссылки: %w", err)
		}
		if link.Deleted() {
			return "", model.ErrNotFound
		}
		entry = link.Cached()
	}

	if entry.Expired(s.now()) {
		if hit {
			s.invalidate(ctx, code)
		}
		return "", model.ErrExpired
	}

	if err := access.CheckPassword(entry.Password, password); err != nil {
		return "", err
	}

	if err := s.repo.IncrementClick(ctx, code, s.now()); err != nil {
		s.log.Warnw("не удалось учесть клик", "code", code, "error", err)
	}

	if !hit {
		if err := s.cache.Set(ctx, code, entry); err != nil {
			s.log.Warnw("не удалось записать в кэш", "code", code, "error", err)
		} else {
			s.confirmCached(ctx, code, entry)
		}
	}

	s.publish(audit.ActionFollow, nil, code, entry.URL)
	return entry.URL, nil
}

// confirmCached сверяет только что записанный в кэш снимок с хранилищем.
// Мутация пишет в хранилище раньше, чем инвалидирует кэш, поэтому либо
// её инвалидация придёт после Set, либо повторное чтение уже увидит изменение.
func (s *URLService) confirmCached(ctx context.Context, code string, entry *model.CachedLink) {
	link, err := s.repo.FindByCode(ctx, code)
	switch {
	case err == nil && !link.Deleted() && sameEntry(link.Cached(), entry):
		return
	case err != nil && !errors.Is(err, model.ErrNotFound):
		s.log.Warnw("не удалось перечитать ссылку после записи в кэш", "code", code, "error", err)
	}
	s.invalidate(ctx, code)
}

func sameEntry(a, b *model.CachedLink) bool {
	if a.URL != b.URL || a.Password != b.Password {
		return false
	}
	if a.ExpiresAt == nil || b.ExpiresAt == nil {
		return a.ExpiresAt == nil && b.ExpiresAt == nil
	}
	return a.ExpiresAt.Equal(*b.ExpiresAt)
}
