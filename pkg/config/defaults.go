package config

import (
	"strings"
	"time"
)

// wellKnownDiscoveryNQN is the IANA-registered Discovery NQN every
// discovery controller answers to unless overridden (spec §9 Open
// Question 3 / CLI --nqn default).
const wellKnownDiscoveryNQN = "nqn.2014-08.org.nvmexpress.discovery"

// GetDefaultConfig returns a fully-defaulted Config, used when no
// config file is present.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in unset fields with sensible defaults. Zero
// values (0, "", false) are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.ConfigFS.Root == "" {
		cfg.ConfigFS.Root = "/sys/kernel/config/nvmet"
	}
	if cfg.NQN == "" {
		cfg.NQN = wellKnownDiscoveryNQN
	}
	if cfg.Port == 0 {
		cfg.Port = 8009
	}
	if cfg.HealthPort == 0 {
		cfg.HealthPort = 8080
	}
	if cfg.KatoIntervalMS == 0 {
		cfg.KatoIntervalMS = 1000
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyDatabaseDefaults(&cfg.Database)
	applyMetricsDefaults(&cfg.Metrics)
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

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "sqlite"
	}
	if cfg.Backend == "sqlite" && cfg.SQLitePath == "" {
		cfg.SQLitePath = "/var/lib/nvme-discd/discdb.sqlite"
	}
	if cfg.Backend == "badger" && cfg.BadgerDir == "" {
		cfg.BadgerDir = "/var/lib/nvme-discd/discdb"
	}
	if cfg.Backend == "postgres" {
		if cfg.Postgres.Port == 0 {
			cfg.Postgres.Port = 5432
		}
		if cfg.Postgres.SSLMode == "" {
			cfg.Postgres.SSLMode = "disable"
		}
		if cfg.Postgres.MaxOpenConns == 0 {
			cfg.Postgres.MaxOpenConns = 10
		}
		if cfg.Postgres.MaxIdleConns == 0 {
			cfg.Postgres.MaxIdleConns = 2
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
