package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("data", "books.json"), cfg.Storage.BooksPath())
	assert.Equal(t, filepath.Join("data", "users.json"), cfg.Storage.UsersPath())
	assert.Equal(t, filepath.Join("data", "events.json"), cfg.Storage.EventsPath())
	assert.Equal(t, 30*time.Second, cfg.Storage.TTL())
	assert.Equal(t, 60*time.Second, cfg.Convert.Timeout())
	assert.Equal(t, 2, cfg.Convert.Workers)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.HTTP.UIEnabled)
	assert.Equal(t, filepath.Join("web", "dist"), cfg.HTTP.UIStaticDir)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/shelf")
	t.Setenv("BOOKS_FILE", "catalog.json")
	t.Setenv("CACHE_TTL", "5")
	t.Setenv("CONVERT_WORKERS", "4")
	t.Setenv("ADMIN_IDS", "42, 1001,  broken , 7")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/var/lib/shelf", "catalog.json"), cfg.Storage.BooksPath())
	assert.Equal(t, 5*time.Second, cfg.Storage.TTL())
	assert.Equal(t, 4, cfg.Convert.Workers)
	assert.Equal(t, []int64{42, 1001, 7}, cfg.Security.AdminIDs)
}

func TestNewFromEnv_RejectsBadValues(t *testing.T) {
	t.Setenv("CACHE_TTL", "-1")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL")
}

func TestSecurityConfig_IsAdmin(t *testing.T) {
	sec := SecurityConfig{AdminIDs: []int64{1, 2}}

	assert.True(t, sec.IsAdmin(1))
	assert.False(t, sec.IsAdmin(3))
}

func TestNewFromEnv_Options(t *testing.T) {
	cfg, err := NewFromEnv(func(c *Config) {
		c.Convert.Workers = 8
	})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Convert.Workers)
}
