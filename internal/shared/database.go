package shared

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// sqliteParams enables foreign keys, waits on locked databases instead of
// failing, and takes the write lock at BEGIN so concurrent upserts serialise.
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

// DB is a [sql.DB] that remembers which driver opened it.
type DB struct {
	*sql.DB
	Driver string
}

// OpenDatabase opens and pings the database described by cfg and applies its pool limits.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig) (*DB, error) {
	dsn, err := DataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrStoreConnection, err)
	}

	ConfigureDatabase(db, cfg)
	return &DB{DB: db, Driver: cfg.Driver}, nil
}

// DataSourceName returns the driver-specific DSN for cfg.
func DataSourceName(cfg DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if cfg.URL == "" {
			return "", fmt.Errorf("%w: database.url is empty", ErrConfiguration)
		}
		// Each pooled connection and the migrator would get a separate empty database.
		if strings.Contains(cfg.URL, ":memory:") || strings.Contains(cfg.URL, "mode=memory") {
			return "", fmt.Errorf("%w: in-memory sqlite databases are not supported, use a file path", ErrConfiguration)
		}
		sep := "?"
		if strings.Contains(cfg.URL, "?") {
			sep = "&"
		}
		return "file:" + strings.TrimPrefix(cfg.URL, "file:") + sep + sqliteParams, nil
	case DriverPostgres:
		if cfg.URL == "" {
			return "", fmt.Errorf("%w: database.url is empty", ErrConfiguration)
		}
		return cfg.URL, nil
	default:
		return "", fmt.Errorf("%w: unsupported database driver %q", ErrConfiguration, cfg.Driver)
	}
}

// ConfigureDatabase sets connection pool settings for the database.
func ConfigureDatabase(db *sql.DB, cfg DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// Postgres reports whether the database speaks the postgres dialect.
func (db *DB) Postgres() bool {
	return db.Driver == DriverPostgres
}

// Rebind rewrites "?" placeholders into the "$n" form postgres expects.
// Queries for sqlite are returned unchanged.
func (db *DB) Rebind(query string) string {
	if !db.Postgres() {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// CollateBinary returns the collation clause that orders text by byte value.
func (db *DB) CollateBinary() string {
	if db.Postgres() {
		return `COLLATE "C"`
	}
	return "COLLATE BINARY"
}
