package discdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// BackendType selects the SQL dialect backing the discovery store. Per
// spec §1, the SQL dialect itself is an opaque key/value-plus-join layer;
// this type only selects which opaque implementation to open.
type BackendType string

const (
	BackendSQLite   BackendType = "sqlite"
	BackendPostgres BackendType = "postgres"
	BackendBadger   BackendType = "badger"
)

// SQLiteConfig holds SQLite-specific connection settings.
type SQLiteConfig struct {
	// Path is the database file location. Per spec §6, this file is
	// truncated on clean shutdown: the configfs tree is authoritative,
	// the DB is a projection.
	Path string
}

// PostgresConfig holds PostgreSQL-specific connection settings.
type PostgresConfig struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

func (c *PostgresConfig) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Config selects and configures the discovery store backend.
type Config struct {
	Backend  BackendType
	SQLite   SQLiteConfig
	Postgres PostgresConfig
	// BadgerDir is the on-disk directory for the BadgerDB backend.
	BadgerDir string
}

// ApplyDefaults fills in unset fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Backend == BackendSQLite && c.SQLite.Path == "" {
		c.SQLite.Path = "/var/lib/nvme-discd/discdb.sqlite"
	}
	if c.Backend == BackendPostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 10
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 2
		}
	}
	if c.Backend == BackendBadger && c.BadgerDir == "" {
		c.BadgerDir = "/var/lib/nvme-discd/discdb"
	}
}

// GORMStore implements Store on top of GORM, supporting SQLite and
// PostgreSQL via the same code path (grounded on
// pkg/controlplane/store/gorm.go's New()).
type GORMStore struct {
	db *gorm.DB
}

var _ Store = (*GORMStore)(nil)

// New opens the discovery store for the given config and runs
// auto-migration. For BackendBadger, use discdb/badger.New instead.
func New(cfg *Config) (*GORMStore, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()

	var dialector gorm.Dialector
	switch cfg.Backend {
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("discdb: create sqlite dir: %w", err)
		}
		dsn := cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)
	case BackendPostgres:
		dialector = postgres.Open(cfg.Postgres.dsn())
	default:
		return nil, fmt.Errorf("discdb: unsupported gorm backend %q", cfg.Backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("discdb: open database: %w", err)
	}

	if cfg.Backend == BackendPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("discdb: underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("discdb: migrate schema: %w", err)
	}

	return &GORMStore{db: db}, nil
}

// DB returns the underlying GORM handle, for tests and the truncate-on-
// shutdown path (spec §6 "Persisted state").
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying database connection.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Truncate empties every table, used on clean shutdown since the configfs
// tree — not the database — is authoritative (spec §6).
func (s *GORMStore) Truncate() error {
	for _, m := range AllModels() {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("discdb: truncate: %w", err)
		}
	}
	return nil
}
