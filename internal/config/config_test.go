package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	path := writeConfig(t, `
database:
  type: sqlite
  sqlite:
    path: `+dbPath+`
session:
  cookie_secret: "0123456789abcdef0123"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, DefaultBcryptCost, cfg.Security.BcryptCost)
	assert.Equal(t, DefaultAuditBatch, cfg.Audit.BatchSize)
	assert.Equal(t, "ADMIN", cfg.DefaultUser.Role)
	assert.False(t, cfg.Audit.Async)

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err, "sqlite data dir should be created")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  type: sqlite
  sqlite:
    path: `+filepath.Join(t.TempDir(), "a.db")+`
session:
  ttl: 10m
  cookie_secret: "file-secret-1234567"
`)

	t.Setenv("AUTHTRAIL_SESSION_TTL", "45m")
	t.Setenv("AUTHTRAIL_COOKIE_SECRET", "env-secret-abcdefghij")
	t.Setenv("AUTHTRAIL_AUDIT_ASYNC", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "env-secret-abcdefghij", cfg.Session.CookieSecret)
	assert.True(t, cfg.Audit.Async)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unsupported database", func(t *testing.T) {
		path := writeConfig(t, `
database:
  type: oracle
session:
  cookie_secret: "0123456789abcdef0123"
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "unsupported database type")
	})

	t.Run("short cookie secret", func(t *testing.T) {
		path := writeConfig(t, `
database:
  type: sqlite
  sqlite:
    path: `+filepath.Join(t.TempDir(), "b.db")+`
session:
  cookie_secret: "short"
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "cookie_secret")
	})

	t.Run("mysql without username", func(t *testing.T) {
		path := writeConfig(t, `
database:
  type: mysql
  mysql:
    database: auth
session:
  cookie_secret: "0123456789abcdef0123"
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "MySQL username is required")
	})
}

func TestLoad_ShippedConfigRequiresSecrets(t *testing.T) {
	shipped := filepath.Join("..", "..", "configs", "config.yaml")
	t.Setenv("AUTHTRAIL_DB_PATH", filepath.Join(t.TempDir(), "shipped.db"))

	t.Run("no cookie secret", func(t *testing.T) {
		t.Setenv("AUTHTRAIL_COOKIE_SECRET", "")
		_, err := Load(shipped)
		assert.ErrorContains(t, err, "cookie_secret")
	})

	t.Run("secrets from environment", func(t *testing.T) {
		t.Setenv("AUTHTRAIL_COOKIE_SECRET", "env-secret-abcdefghij")
		t.Setenv("AUTHTRAIL_DEFAULT_USER_PASSWORD", "")

		cfg, err := Load(shipped)
		require.NoError(t, err)
		assert.Equal(t, "env-secret-abcdefghij", cfg.Session.CookieSecret)
		assert.Empty(t, cfg.DefaultUser.Password, "no admin is seeded without a password")

		t.Setenv("AUTHTRAIL_DEFAULT_USER_PASSWORD", "from-env")
		cfg, err = Load(shipped)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.DefaultUser.Password)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, DefaultSessionTTL, cfg.Session.TTL)
	assert.Equal(t, 3306, cfg.Database.MySQL.Port)
}
