package config

import (
	"fmt"
	"os"

	"github.com/Popolzen/shortlink/internal/model"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type ownersFile struct {
	Owners []*model.Owner `yaml:"owners"`
}

// LoadOwners читает владельцев ключей для начального заполнения хранилища.
// Владельцу без id выдаётся UUID.
//
//	owners:
//	  - id: 6f1c...
//	    api_key: secret
//	    tier: enterprise
func LoadOwners(path string) ([]*model.Owner, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла владельцев: %w", err)
	}

	var f ownersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("разбор файла владельцев: %w", err)
	}

	seen := make(map[string]bool, len(f.Owners))
	for i, o := range f.Owners {
		if o == nil || o.APIKey == "" {
			return nil, fmt.Errorf("владелец #%d: нужен api_key", i)
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if !o.Tier.Valid() {
			return nil, fmt.Errorf("владелец %s: неизвестный уровень %q", o.ID, o.Tier)
		}
		if seen[o.APIKey] {
			return nil, fmt.Errorf("владелец %s: ключ уже используется", o.ID)
		}
		seen[o.APIKey] = true
	}
	return f.Owners, nil
}
