// Package access решения о правах: кто может создавать, менять и удалять ссылки.
//
// Функции чистые, хранилище не трогают: вызывающий код заранее достаёт
// владельца по ключу и саму ссылку.
package access

import (
	"crypto/subtle"

	"github.com/Popolzen/shortlink/internal/model"
)

// Actor тот, кто делает запрос.
// Owner == nil при CredentialSupplied == true означает неизвестный ключ.
type Actor struct {
	Owner              *model.Owner
	CredentialSupplied bool
}

// Anonymous запрос без ключа
func (a Actor) Anonymous() bool {
	return !a.CredentialSupplied
}

// Invalid ключ передан, но владелец не найден
func (a Actor) Invalid() bool {
	return a.CredentialSupplied && a.Owner == nil
}

// CanCreate владелец новой ссылки: id владельца ключа или nil для анонимного запроса
func CanCreate(a Actor) (*string, error) {
	if a.Invalid() {
		return nil, model.ErrInvalidCredential
	}
	if a.Owner == nil {
		return nil, nil
	}
	id := a.Owner.ID
	return &id, nil
}

// CanDelete ничью ссылку удаляют без ключа, свою только с ключом владельца.
// Без ключа на чужую ссылку ErrUnauthorized, с любым другим ключом ErrForbidden.
func CanDelete(a Actor, link *model.ShortLink) error {
	if a.Invalid() {
		return model.ErrForbidden
	}
	if a.Anonymous() {
		if link.OwnerID == nil {
			return nil
		}
		return model.ErrUnauthorized
	}
	if !link.OwnedBy(a.Owner.ID) {
		return model.ErrForbidden
	}
	return nil
}

// CanEdit сначала владение, потом пароль ссылки.
// Если у ссылки есть пароль, отсутствующий password считается неверным.
func CanEdit(a Actor, link *model.ShortLink, password *string) error {
	if a.Owner == nil || !link.OwnedBy(a.Owner.ID) {
		return model.ErrForbidden
	}
	if link.Password != "" && (password == nil || !equal(*password, link.Password)) {
		return model.ErrInvalidPassword
	}
	return nil
}

// RequireIdentity нужен действительный ключ
func RequireIdentity(a Actor) (*model.Owner, error) {
	if a.Anonymous() {
		return nil, model.ErrUnauthorized
	}
	if a.Owner == nil {
		return nil, model.ErrInvalidCredential
	}
	return a.Owner, nil
}

// CanBatch пакетное создание только для enterprise
func CanBatch(a Actor) (*model.Owner, error) {
	return requireTier(a, model.TierEnterprise)
}

// CanAddDomain собственные домены только для enterprise
func CanAddDomain(a Actor) (*model.Owner, error) {
	return requireTier(a, model.TierEnterprise)
}

func requireTier(a Actor, tier model.Tier) (*model.Owner, error) {
	owner, err := RequireIdentity(a)
	if err != nil {
		return nil, err
	}
	if owner.Tier != tier {
		return nil, model.ErrForbidden
	}
	return owner, nil
}

// CheckPassword пароль при переходе по ссылке
func CheckPassword(linkPassword string, supplied *string) error {
	if linkPassword == "" {
		return nil
	}
	if supplied == nil || *supplied == "" {
		return model.ErrPasswordRequired
	}
	if !equal(*supplied, linkPassword) {
		return model.ErrInvalidPassword
	}
	return nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
