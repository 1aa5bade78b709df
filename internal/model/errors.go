package model

import "errors"

// Ошибки предметной области. Обработчики переводят их в HTTP-статусы.
var (
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidURL         = errors.New("Invalid URL format")
	ErrInvalidCode        = errors.New("Invalid short code")
	ErrInvalidExpiry      = errors.New("Invalid expiry date")
	ErrUnauthorized       = errors.New("No API key provided")
	ErrInvalidCredential  = errors.New("Invalid API key")
	ErrForbidden          = errors.New("You do not have permission to perform this action")
	ErrNotFound           = errors.New("No original URL found")
	ErrExpired            = errors.New("URL has expired")
	ErrPasswordRequired   = errors.New("Password required")
	ErrInvalidPassword    = errors.New("Invalid password")
	ErrCodeTaken          = errors.New("Custom code is already taken")
	ErrCodeSpaceExhausted = errors.New("Could not generate a unique short code")
	ErrDomainTaken        = errors.New("Domain already exists")
	ErrRateLimited        = errors.New("Too many requests")
	ErrBlacklisted        = errors.New("Your API key is blacklisted")
)

// RequestError некорректный запрос с сообщением для клиента.
// errors.Is(err, ErrBadRequest) для него истинно.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string {
	return e.Msg
}

func (e *RequestError) Is(target error) bool {
	return target == ErrBadRequest
}

// BadRequest ошибка 400 с заданным сообщением
func BadRequest(msg string) error {
	return &RequestError{Msg: msg}
}
