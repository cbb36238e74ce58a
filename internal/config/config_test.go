package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, LeaveScopeAll, cfg.Leave.ManagerScope)
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("LEAVE_MANAGER_SCOPE", "Reports")
	t.Setenv("SESSION_EXPIRATION", "2h")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := NewConfig()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, LeaveScopeReports, cfg.Leave.ManagerScope)
	assert.Equal(t, 2*time.Hour, cfg.Session.Expiration)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestValidate(t *testing.T) {
	cfg := NewConfig()
	cfg.Leave.ManagerScope = "team"
	cfg.Storage.Type = "s3"
	cfg.Storage.S3Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEAVE_MANAGER_SCOPE")
	assert.Contains(t, err.Error(), "STORAGE_S3_BUCKET")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "crm", Password: "p@ss", Name: "realty", SSLMode: "disable"}
	assert.Equal(t, "postgres://crm:p%40ss@db:5433/realty?sslmode=disable", d.DSN())
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REALTYCRM_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("REALTYCRM_TEST_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("REALTYCRM_TEST_VALUE"))
}
