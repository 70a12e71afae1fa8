// Package database provides database connection management and utilities.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	apperrors "github.com/allisson/orderflow/internal/errors"
)

// Supported driver names, as registered by lib/pq and go-sql-driver/mysql.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds database configuration settings.
type Config struct {
	Driver             string
	ConnectionString   string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	PingTimeout        time.Duration
}

// ValidateDriver rejects drivers other than postgres and mysql.
func ValidateDriver(driver string) error {
	switch driver {
	case DriverPostgres, DriverMySQL:
		return nil
	default:
		return apperrors.Wrapf(apperrors.ErrInvalidInput,
			"unsupported database driver %q (valid options: postgres, mysql)", driver)
	}
}

// MigrationSource returns the golang-migrate source URL holding the driver's schema
// and the database URL migrate connects with. golang-migrate picks its database
// driver from the URL scheme, which MySQL DSNs lack.
func MigrationSource(driver, connectionString string) (sourceURL, databaseURL string, err error) {
	if err := ValidateDriver(driver); err != nil {
		return "", "", err
	}
	if driver == DriverMySQL {
		return "file://migrations/mysql", "mysql://" + connectionString, nil
	}
	return "file://migrations/postgresql", connectionString, nil
}

// Connect opens a pool for cfg.Driver and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := ValidateDriver(cfg.Driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
