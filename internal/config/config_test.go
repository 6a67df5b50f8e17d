package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"security": {"jwt_secret": "from-file"},
		"storage": {"preferences_driver": "mongo"}
	}`), 0o600))

	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("GENERATION_TIMEOUT", "45s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "from-file", cfg.Security.JWTSecret)
	assert.Equal(t, "mongo", cfg.Storage.PreferencesDriver)
	assert.Equal(t, 45*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, "investor_portal", cfg.Database.DBName)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.GetServerAddr())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.PreferencesDriver)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.EqualError(t, cfg.Validate(), "security.jwt_secret is required")

	cfg.Security.JWTSecret = "x"
	cfg.Storage.PreferencesDriver = "dynamo"
	assert.EqualError(t, cfg.Validate(), `unknown preferences driver "dynamo"`)

	cfg.Storage.PreferencesDriver = "postgres"
	assert.NoError(t, cfg.Validate())
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, DBName: "portal", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/portal?sslmode=disable", db.GetDatabaseURL())
}
