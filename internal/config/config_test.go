package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Popolzen/shortlink/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerAddr, c.ServerAddr)
	assert.Equal(t, DefaultCacheTTL, c.CacheTTL)
	assert.Equal(t, "free", c.AnonymousTier)
	assert.Equal(t, "mint", c.DedupPolicy)
	assert.Equal(t, 10, c.MaxCodeAttempts)
	assert.Empty(t, c.DBurl)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"server_address": ":7000",
		"dedup_policy": "reuse",
		"redis_addr": "file:6379"
	}`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LOG_LEVEL") })
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("CACHE_TTL", "90s")

	c, err := Load([]string{"-c", file, "-a", ":9000"})
	require.NoError(t, err)

	// флаг > env > .env > файл > умолчания
	assert.Equal(t, ":9000", c.ServerAddr)
	assert.Equal(t, "env:6379", c.RedisAddr)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "reuse", c.DedupPolicy)
	assert.Equal(t, 90*time.Second, c.CacheTTL)
}

func TestLoad_FileCacheTTL(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"строка", `"168h"`, 168 * time.Hour, false},
		{"составная строка", `"1h30m"`, 90 * time.Minute, false},
		{"наносекунды", `60000000000`, time.Minute, false},
		{"неверная строка", `"week"`, 0, true},
		{"неверный тип", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(dir, "config.json")
			require.NoError(t, os.WriteFile(file, []byte(`{"cache_ttl": `+tt.value+`, "log_level": "warn"}`), 0o644))

			c, err := Load([]string{"-c", file})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.CacheTTL)
			// Остальные поля файла по-прежнему читаются
			assert.Equal(t, "warn", c.LogLevel)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load([]string{"-dedup", "sometimes"})
	assert.Error(t, err)

	_, err = Load([]string{"-anonymous-tier", "gold"})
	assert.Error(t, err)

	_, err = Load([]string{"-s"})
	assert.Error(t, err)

	_, err = Load([]string{"-c", "/nonexistent/config.json"})
	assert.Error(t, err)
}

func TestLoadOwners(t *testing.T) {
	dir := t.TempDir()

	owners, err := LoadOwners("")
	require.NoError(t, err)
	assert.Nil(t, owners)

	path := filepath.Join(dir, "owners.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
owners:
  - id: 11111111-1111-1111-1111-111111111111
    api_key: free-key
    tier: free
  - api_key: corp-key
    tier: enterprise
`), 0o644))

	owners, err = LoadOwners(path)
	require.NoError(t, err)
	require.Len(t, owners, 2)
	assert.Equal(t, "corp-key", owners[1].APIKey)
	assert.Equal(t, model.TierEnterprise, owners[1].Tier)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", owners[0].ID)
	assert.Len(t, owners[1].ID, 36)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("owners:\n  - id: x\n    api_key: k\n    tier: gold\n"), 0o644))
	_, err = LoadOwners(bad)
	assert.Error(t, err)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("owners:\n  - {id: a, api_key: k, tier: free}\n  - {id: b, api_key: k, tier: free}\n"), 0o644))
	_, err = LoadOwners(dup)
	assert.Error(t, err)
}
