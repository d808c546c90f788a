// Package config loads nvme-discd's configuration from a YAML file and
// environment variables over built-in defaults, following the teacher's
// layered-config convention. No command-line flags are bound to
// configuration keys.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

// Config is the static configuration for an nvme-discd instance.
//
// Configuration sources, highest precedence first:
//  1. Environment variables (DISCD_<SECTION>_<KEY>)
//  2. Configuration file (YAML)
//  3. Default values
//
// There are no --configfs/--port/--nqn/--tls/--verbose command-line flags;
// these settings come only from the sources above.
type Config struct {
	// ConfigFS is the kernel nvmet configfs tree to watch (spec §4.B).
	ConfigFS ConfigFSConfig `mapstructure:"configfs" yaml:"configfs"`

	// NQN is this controller's own subsystem NQN, served in Identify and
	// as the discovery subsystem hosts connect to. Defaults to the
	// well-known Discovery NQN.
	NQN string `mapstructure:"nqn" validate:"required" yaml:"nqn"`

	// Port is the discovery service trsvcid setting (default 8009). No
	// other package reads it: listeners are bound only from configfs port
	// entries, and a port entry without a trsvcid gets no fallback.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// HealthPort serves the /health endpoint the status command polls.
	HealthPort int `mapstructure:"health_port" validate:"omitempty,min=1,max=65535" yaml:"health_port"`

	// TLS requests TLS/PSK negotiation on accepted connections.
	// Negotiation itself is out of scope (spec §1 Non-goals); no other
	// package reads this setting.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// Verbose is a verbosity level read from the config file or
	// environment. No other package reads it; log verbosity is set by
	// Logging.Level.
	Verbose int `mapstructure:"verbose" yaml:"verbose"`

	// KatoIntervalMS is the keep-alive watchdog tick interval.
	KatoIntervalMS uint32 `mapstructure:"kato_interval_ms" validate:"omitempty,gt=0" yaml:"kato_interval_ms"`

	// ShutdownTimeout bounds how long the interface manager waits for
	// in-flight connections to drain on SIGTERM/SIGINT.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// ConfigFSConfig configures the configfs reflector's root directory.
type ConfigFSConfig struct {
	Root string `mapstructure:"root" validate:"required" yaml:"root"`
}

// LoggingConfig controls logging behavior (see internal/logger.Config).
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing and Pyroscope profiling
// (see internal/telemetry.Config / ProfilingConfig).
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls continuous profiling via Pyroscope.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// DatabaseConfig selects and configures the discovery store backend
// (sqlite, postgres, or badger — see internal/discdb.Config).
type DatabaseConfig struct {
	Backend    string         `mapstructure:"backend" validate:"omitempty,oneof=sqlite postgres badger" yaml:"backend"`
	SQLitePath string         `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	BadgerDir  string         `mapstructure:"badger_dir" yaml:"badger_dir"`
	Postgres   PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	Database     string `mapstructure:"database" yaml:"database"`
	User         string `mapstructure:"user" yaml:"user"`
	Password     string `mapstructure:"password" yaml:"password"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// ToDiscDBConfig converts the static database config into the
// internal/discdb.Config that internal/discdb.New and
// internal/discdb/badger.New consume.
func (d DatabaseConfig) ToDiscDBConfig() *discdb.Config {
	return &discdb.Config{
		Backend:   discdb.BackendType(d.Backend),
		SQLite:    discdb.SQLiteConfig{Path: d.SQLitePath},
		BadgerDir: d.BadgerDir,
		Postgres: discdb.PostgresConfig{
			Host:         d.Postgres.Host,
			Port:         d.Postgres.Port,
			Database:     d.Postgres.Database,
			User:         d.Postgres.User,
			Password:     d.Postgres.Password,
			SSLMode:      d.Postgres.SSLMode,
			MaxOpenConns: d.Postgres.MaxOpenConns,
			MaxIdleConns: d.Postgres.MaxIdleConns,
		},
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to config file (empty string uses the default
//     location under $XDG_CONFIG_HOME/nvme-discd/config.yaml)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with friendlier error messages when the
// config file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please create a configuration file at that location first,\n"+
				"or specify a custom config file:\n"+
				"  nvme-discd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file at that path.",
			configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form, creating parent
// directories as needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DISCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
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

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nvme-discd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nvme-discd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
