package shortener

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/Popolzen/shortlink/internal/model"
)

const (
	// codeBytes случайных байт на код: 3 байта дают 6 hex-символов
	codeBytes = 3

	DefaultMaxCodeAttempts = 10
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// generateCode случайный код из crypto/rand
func generateCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("генерация кода: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidateCode пользовательский код: 1-32 символа из [A-Za-z0-9_-]
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return model.ErrInvalidCode
	}
	return nil
}

// createWithCode сохраняет ссылку под пользовательским кодом или под случайным.
// Существующая запись никогда не перезаписывается.
func (s *URLService) createWithCode(ctx context.Context, link *model.ShortLink, custom string) (*model.ShortLink, error) {
	if custom != "" {
		if err := ValidateCode(custom); err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, custom); err != nil {
			return nil, err
		}
		link.ShortCode = custom
		return s.repo.Create(ctx, link)
	}

	for range s.opts.MaxCodeAttempts {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}

		if err := s.ensureFree(ctx, code); err != nil {
			if errors.Is(err, model.ErrCodeTaken) {
				continue
			}
			return nil, err
		}

		link.ShortCode = code
		created, err := s.repo.Create(ctx, link)
		if errors.Is(err, model.ErrCodeTaken) {
			// Код заняли между проверкой и вставкой
			continue
		}
		return created, err
	}

	s.log.Errorw("не удалось подобрать свободный код", "attempts", s.opts.MaxCodeAttempts)
	return nil, model.ErrCodeSpaceExhausted
}

// ensureFree код не занят ни активной, ни удалённой ссылкой
func (s *URLService) ensureFree(ctx context.Context, code string) error {
	_, err := s.repo.FindByCode(ctx, code)
	switch {
	case err == nil:
		return model.ErrCodeTaken
	case errors.Is(err, model.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("проверка кода: %w", err)
	}
}
