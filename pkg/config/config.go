package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/authkeep/internal/bytesize"
	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the authkeep configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (AUTHKEEP_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// The file is read once per enable. A reload re-reads it from disk.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics enables the Prometheus collectors exposed on the API server
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the operator HTTP API
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Database selects the persistent store backend (SQLite or PostgreSQL)
	Database datasource.Config `mapstructure:"database" yaml:"database"`

	// DataDir holds player data snapshots, message overrides and backups.
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	// Host describes the embedding host environment
	Host HostConfig `mapstructure:"host" yaml:"host"`

	Security     SecurityConfig     `mapstructure:"security" yaml:"security"`
	Restrictions RestrictionsConfig `mapstructure:"restrictions" yaml:"restrictions"`
	Sessions     SessionsConfig     `mapstructure:"sessions" yaml:"sessions"`
	Purge        PurgeConfig        `mapstructure:"purge" yaml:"purge"`
	Backup       BackupConfig       `mapstructure:"backup" yaml:"backup"`
	Email        EmailConfig        `mapstructure:"email" yaml:"email"`
	Messages     MessagesConfig     `mapstructure:"messages" yaml:"messages"`
	PlayerData   PlayerDataConfig   `mapstructure:"player_data" yaml:"player_data"`
	Tasks        TasksConfig        `mapstructure:"tasks" yaml:"tasks"`
	Shutdown     ShutdownConfig     `mapstructure:"shutdown" yaml:"shutdown"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR" yaml:"level"`

	// Format is either text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector (host:port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of traces kept, between 0 and 1
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig enables Prometheus metrics. When disabled no collectors are
// registered and every metrics call is a no-op.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// APIConfig configures the operator HTTP API.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// JWTSecret signs operator tokens. When empty the API is unauthenticated.
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32" yaml:"jwt_secret,omitempty"`

	// TokenTTL is the lifetime of tokens issued by "authkeep token".
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// HostConfig describes the host environment that embeds the plugin.
type HostConfig struct {
	// Name is the owner name used to tag scheduled tasks.
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Version is the host version used for capability negotiation, e.g. "1.12.2".
	Version string `mapstructure:"version" validate:"required" yaml:"version"`

	// Features lists capabilities the host reports explicitly. When set it
	// takes precedence over version based detection.
	Features []string `mapstructure:"features" yaml:"features,omitempty"`

	// MaxPlayers bounds the standalone host roster.
	MaxPlayers int `mapstructure:"max_players" validate:"omitempty,min=1" yaml:"max_players"`
}

// SecurityConfig holds the lifecycle safety switches.
type SecurityConfig struct {
	// StopServerOnProblem shuts the host down when enabling fails.
	StopServerOnProblem bool `mapstructure:"stop_server_on_problem" yaml:"stop_server_on_problem"`

	// ReloadCommandSupport keeps players logged in across a host reload.
	ReloadCommandSupport bool `mapstructure:"reload_command_support" yaml:"reload_command_support"`

	// PasswordHash is the hashing algorithm for stored passwords.
	// PLAINTEXT is accepted only so existing stores can be migrated.
	PasswordHash string `mapstructure:"password_hash" validate:"required,oneof=BCRYPT PLAINTEXT" yaml:"password_hash"`

	BcryptCost int `mapstructure:"bcrypt_cost" validate:"omitempty,min=4,max=31" yaml:"bcrypt_cost"`

	MinPasswordLength int `mapstructure:"min_password_length" validate:"min=1" yaml:"min_password_length"`
}

// RestrictionsConfig controls what unauthenticated players may do and how
// their state is preserved.
type RestrictionsConfig struct {
	// ForceSingleSession rejects a second login for an identity already online.
	ForceSingleSession bool `mapstructure:"force_single_session" yaml:"force_single_session"`

	// SaveQuitLocation persists the last location when a player leaves.
	SaveQuitLocation bool `mapstructure:"save_quit_location" yaml:"save_quit_location"`

	// TeleportUnauthedToSpawn moves unauthenticated players to spawn until login.
	TeleportUnauthedToSpawn bool `mapstructure:"teleport_unauthed_to_spawn" yaml:"teleport_unauthed_to_spawn"`

	// NoTeleport disables every teleport the plugin would perform.
	NoTeleport bool `mapstructure:"no_teleport" yaml:"no_teleport"`

	// UnrestrictedNames are exempt from authentication.
	UnrestrictedNames []string `mapstructure:"unrestricted_names" yaml:"unrestricted_names"`

	// AllowedCommands may be used before authenticating.
	AllowedCommands []string `mapstructure:"allowed_commands" yaml:"allowed_commands"`

	AllowChat bool `mapstructure:"allow_chat" yaml:"allow_chat"`

	Spawn LocationConfig `mapstructure:"spawn" yaml:"spawn"`
}

// LocationConfig is a position in a named world.
type LocationConfig struct {
	World string  `mapstructure:"world" validate:"required" yaml:"world"`
	X     float64 `mapstructure:"x" yaml:"x"`
	Y     float64 `mapstructure:"y" yaml:"y"`
	Z     float64 `mapstructure:"z" yaml:"z"`
	Yaw   float32 `mapstructure:"yaw" yaml:"yaw"`
	Pitch float32 `mapstructure:"pitch" yaml:"pitch"`
}

// SessionsConfig controls session resumption after a reconnect.
type SessionsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Timeout is how long after the last login a session can be resumed.
	// Zero means sessions never expire.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PurgeConfig controls removal of inactive accounts.
type PurgeConfig struct {
	// Auto runs a purge every time the plugin is enabled.
	Auto bool `mapstructure:"auto" yaml:"auto"`

	// Days is the inactivity threshold.
	Days int `mapstructure:"days" validate:"min=1" yaml:"days"`
}

// BackupConfig controls database backups around the lifecycle.
type BackupConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	OnStart bool `mapstructure:"on_start" yaml:"on_start"`
	OnStop  bool `mapstructure:"on_stop" yaml:"on_stop"`

	// Directory defaults to <data_dir>/backups.
	Directory string `mapstructure:"directory" yaml:"directory"`

	S3 S3BackupConfig `mapstructure:"s3" yaml:"s3"`
}

// S3BackupConfig uploads finished backups to an S3 compatible bucket.
type S3BackupConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Enabled true" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// EmailConfig controls the email recall reminder.
type EmailConfig struct {
	// RecallPlayers reminds online players without an email to add one.
	RecallPlayers bool `mapstructure:"recall_players" yaml:"recall_players"`

	// RecallInterval is the delay between reminders.
	RecallInterval time.Duration `mapstructure:"recall_interval" yaml:"recall_interval"`
}

// MessagesConfig selects the message catalogue.
type MessagesConfig struct {
	// Language selects messages_<language>.yml from the data directory.
	Language string `mapstructure:"language" validate:"required" yaml:"language"`

	// Watch reloads the catalogue when the file changes on disk.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// PlayerDataConfig configures the snapshot store for teleported players.
type PlayerDataConfig struct {
	// IndexCacheSize bounds the badger index cache. Accepts "64Mi", "1GB", ...
	IndexCacheSize bytesize.Size `mapstructure:"index_cache_size" yaml:"index_cache_size,omitempty"`
}

// TasksConfig controls the recurring maintenance tasks.
type TasksConfig struct {
	// CleanupInterval is the period of the limbo and session cleanup task.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0" yaml:"cleanup_interval"`

	// Workers is the size of the async worker pool.
	Workers int `mapstructure:"workers" validate:"min=1" yaml:"workers"`
}

// ShutdownConfig controls the drain performed when the plugin is disabled.
type ShutdownConfig struct {
	// DrainPollInterval is the wait between two checks of pending tasks.
	DrainPollInterval time.Duration `mapstructure:"drain_poll_interval" validate:"gt=0" yaml:"drain_poll_interval"`

	// DrainMaxAttempts bounds the number of polls before closing anyway.
	DrainMaxAttempts int `mapstructure:"drain_max_attempts" validate:"min=1" yaml:"drain_max_attempts"`

	// Timeout bounds how long the process waits for the drain on exit.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`
}

// ErrConfigNotFound is wrapped by MustLoad when the file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Load loads configuration from file, environment, and defaults.
//
// A missing file is not an error: defaults are returned. A file that exists
// but cannot be parsed or fails validation is.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadOrCreate loads configPath, writing the default configuration there
// first when the file does not exist. created reports whether it did.
func LoadOrCreate(configPath string) (cfg *Config, created bool, err error) {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}

	if _, statErr := os.Stat(configPath); errors.Is(statErr, os.ErrNotExist) {
		if err := writeSampleConfig(configPath); err != nil {
			return nil, false, err
		}
		created = true
	}

	cfg, err = Load(configPath)
	if err != nil {
		return nil, created, err
	}
	return cfg, created, nil
}

// MustLoad loads configuration, failing with instructions when no file exists.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s\n\n"+
			"Please create the configuration file:\n"+
			"  authkeep init --config %s",
			ErrConfigNotFound, configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path with owner-only permissions.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures env overrides, defaults and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	// AUTHKEEP_SECURITY_STOP_SERVER_ON_PROBLEM=false
	v.SetEnvPrefix("AUTHKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true cannot be told apart from an explicit
	// false after unmarshalling, so they are seeded here.
	for key, val := range trueByDefault {
		v.SetDefault(key, val)
	}
	// Secrets are usually absent from the file, which AutomaticEnv alone
	// would not pick up.
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

var trueByDefault = map[string]bool{
	"security.stop_server_on_problem":   true,
	"security.reload_command_support":   true,
	"restrictions.force_single_session": true,
	"backup.on_start":                   true,
	"backup.on_stop":                    true,
	"telemetry.insecure":                true,
	"api.enabled":                       true,
}

var envOnlyKeys = []string{
	"api.jwt_secret",
	"backup.s3.access_key_id",
	"backup.s3.secret_access_key",
	"database.postgres.password",
}

// readConfigFile reports whether a config file was found and parsed.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		bytesize.DecodeHook(),
		durationDecodeHook(),
	)
}

// durationDecodeHook accepts "30s", "5m" or integer nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/authkeep, ~/.config/authkeep, or "."
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "authkeep")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "authkeep")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
