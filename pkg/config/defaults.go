package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/authkeep/internal/bytesize"
	"github.com/marmos91/authkeep/pkg/datasource"
)

// ApplyDefaults fills zero-valued fields with defaults. Explicit values are
// preserved. Booleans that default to true are handled by Load and
// GetDefaultConfig because false is their zero value.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyAPIDefaults(&cfg.API)

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(getConfigDir(), "data")
	}
	applyDatabaseDefaults(&cfg.Database, cfg.DataDir)

	applyHostDefaults(&cfg.Host)
	applySecurityDefaults(&cfg.Security)
	applyRestrictionDefaults(&cfg.Restrictions)

	if cfg.Purge.Days == 0 {
		cfg.Purge.Days = 60
	}
	if cfg.Backup.Directory == "" {
		cfg.Backup.Directory = filepath.Join(cfg.DataDir, "backups")
	}
	if cfg.Backup.S3.Region == "" {
		cfg.Backup.S3.Region = "us-east-1"
	}
	if cfg.Email.RecallInterval == 0 {
		cfg.Email.RecallInterval = 5 * time.Hour
	}
	if cfg.Messages.Language == "" {
		cfg.Messages.Language = "en"
	}
	if cfg.PlayerData.IndexCacheSize == 0 {
		cfg.PlayerData.IndexCacheSize = 16 * bytesize.MiB
	}

	applyTaskDefaults(&cfg.Tasks)
	applyShutdownDefaults(&cfg.Shutdown)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8095
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
}

func applyDatabaseDefaults(cfg *datasource.Config, dataDir string) {
	if cfg.Type == "" {
		cfg.Type = datasource.DatabaseTypeSQLite
	}
	if cfg.Type == datasource.DatabaseTypeSQLite && cfg.SQLite.Path == "" {
		cfg.SQLite.Path = filepath.Join(dataDir, "authme.db")
	}
	cfg.ApplyDefaults()
}

func applyHostDefaults(cfg *HostConfig) {
	if cfg.Name == "" {
		cfg.Name = "AuthMe"
	}
	if cfg.Version == "" {
		cfg.Version = "1.12.2"
	}
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = 100
	}
}

func applySecurityDefaults(cfg *SecurityConfig) {
	if cfg.PasswordHash == "" {
		cfg.PasswordHash = "BCRYPT"
	}
	cfg.PasswordHash = strings.ToUpper(cfg.PasswordHash)
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.MinPasswordLength == 0 {
		cfg.MinPasswordLength = 5
	}
}

func applyRestrictionDefaults(cfg *RestrictionsConfig) {
	if len(cfg.AllowedCommands) == 0 {
		cfg.AllowedCommands = []string{"/login", "/register", "/l", "/reg", "/email", "/captcha"}
	}
	if cfg.Spawn.World == "" {
		cfg.Spawn.World = "world"
	}
}

func applyTaskDefaults(cfg *TasksConfig) {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Workers == 0 {
		cfg.Workers = 8
	}
}

func applyShutdownDefaults(cfg *ShutdownConfig) {
	if cfg.DrainPollInterval == 0 {
		cfg.DrainPollInterval = time.Second
	}
	if cfg.DrainMaxAttempts == 0 {
		cfg.DrainMaxAttempts = 60
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
}

// GetDefaultConfig returns a Config with every default applied, including
// the booleans that default to true.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Security: SecurityConfig{
			StopServerOnProblem:  true,
			ReloadCommandSupport: true,
		},
		Restrictions: RestrictionsConfig{
			ForceSingleSession: true,
		},
		Backup: BackupConfig{
			OnStart: true,
			OnStop:  true,
		},
		Telemetry: TelemetryConfig{Insecure: true},
		API:       APIConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
