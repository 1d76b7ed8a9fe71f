// Package database opens the target store and runs candidate SQL against it,
// either as a rollback-guarded dry run or for real.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open returns a handle for driver/dsn and pings it. For SQLite the DSN is a
// file path; the file must already exist unless create is set.
func Open(ctx context.Context, driver, dsn string, create bool) (*sql.DB, error) {
	source, err := dataSource(driver, dsn, create)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite permits a single writer.
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func dataSource(driver, dsn string, create bool) (string, error) {
	switch driver {
	case DriverSQLite:
		path := strings.TrimPrefix(dsn, "file:")
		if path == "" {
			return "", fmt.Errorf("sqlite database path is required")
		}
		mode := "rw"
		if create {
			mode = "rwc"
		}
		return fmt.Sprintf("file:%s?mode=%s&_busy_timeout=5000", path, mode), nil
	case DriverPostgres:
		if strings.TrimSpace(dsn) == "" {
			return "", fmt.Errorf("postgres DSN is required")
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("unknown database driver: %q (supported: %s, %s)", driver, DriverSQLite, DriverPostgres)
	}
}
