package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/authkeep/internal/bytesize"
	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Security.StopServerOnProblem)
	assert.True(t, cfg.Security.ReloadCommandSupport)
	assert.Equal(t, "BCRYPT", cfg.Security.PasswordHash)
	assert.Equal(t, time.Second, cfg.Shutdown.DrainPollInterval)
	assert.Equal(t, 60, cfg.Shutdown.DrainMaxAttempts)
	assert.Equal(t, datasource.DatabaseTypeSQLite, cfg.Database.Type)
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
data_dir: `+dir+`
logging:
  level: debug
security:
  stop_server_on_problem: false
  password_hash: bcrypt
shutdown:
  drain_poll_interval: 250ms
  drain_max_attempts: 4
player_data:
  index_cache_size: 32Mi
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.False(t, cfg.Security.StopServerOnProblem)
	assert.True(t, cfg.Security.ReloadCommandSupport, "unset true-by-default keys stay true")
	assert.Equal(t, "BCRYPT", cfg.Security.PasswordHash)
	assert.Equal(t, 250*time.Millisecond, cfg.Shutdown.DrainPollInterval)
	assert.Equal(t, 4, cfg.Shutdown.DrainMaxAttempts)
	assert.Equal(t, 32*bytesize.MiB, cfg.PlayerData.IndexCacheSize)
	assert.Equal(t, filepath.Join(dir, "authme.db"), cfg.Database.SQLite.Path)
	assert.Equal(t, filepath.Join(dir, "backups"), cfg.Backup.Directory)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "security:\n  stop_server_on_problem: true\n")
	t.Setenv("AUTHKEEP_SECURITY_STOP_SERVER_ON_PROBLEM", "false")
	t.Setenv("AUTHKEEP_API_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Security.StopServerOnProblem)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.API.JWTSecret)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "security: [unterminated"},
		{name: "unknown hash", content: "security:\n  password_hash: MD5\n"},
		{name: "bad log level", content: "logging:\n  level: LOUD\n"},
		{name: "short jwt secret", content: "api:\n  jwt_secret: short\n"},
		{name: "s3 without backups", content: "backup:\n  enabled: false\n  s3:\n    enabled: true\n    bucket: b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.FileExists(t, path)
	assert.True(t, cfg.Security.StopServerOnProblem)

	_, created, err = LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMustLoadRequiresFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# authkeep configuration file")
	assert.Contains(t, string(data), "stop_server_on_problem: true")

	assert.Error(t, InitConfigToPath(path, false))
	assert.NoError(t, InitConfigToPath(path, true))
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := GetDefaultConfig()
	cfg.DataDir = dir
	cfg.Database.SQLite.Path = filepath.Join(dir, "authme.db")
	cfg.Security.PasswordHash = "PLAINTEXT"
	cfg.Restrictions.UnrestrictedNames = []string{"bot"}

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PLAINTEXT", loaded.Security.PasswordHash)
	assert.Equal(t, []string{"bot"}, loaded.Restrictions.UnrestrictedNames)
	assert.Equal(t, cfg.Shutdown, loaded.Shutdown)
}
