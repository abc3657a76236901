package database

import (
	"time"

	"github.com/koustreak/contentstats/internal/errs"
)

// Driver identifies the database engine.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// ParseDriver maps a configured driver name to a Driver.
func ParseDriver(name string) (Driver, error) {
	switch name {
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "postgres", "postgresql", "pgsql":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "unsupported database driver %q", name)
	}
}

// Config holds all settings needed to connect to and pool a snapshot.
type Config struct {
	// Driver is the database engine (e.g. DriverMySQL).
	Driver Driver

	// DSN is the full data source name / connection string.
	// Example: "drupal:drupal@tcp(127.0.0.1:3306)/drupal"
	DSN string

	// Pool tuning
	MaxConns        int32         // maximum number of connections in the pool
	MinConns        int32         // minimum number of idle connections kept alive
	MaxConnLifetime time.Duration // maximum time a connection may be reused
	MaxConnIdleTime time.Duration // maximum time a connection may sit idle

	// Timeouts
	ConnectTimeout time.Duration // time limit for establishing a new connection
}

// DefaultConfig returns pool settings for a single sequential report run.
// The pipeline issues one query at a time, so the pool stays small.
func DefaultConfig(driver Driver, dsn string) *Config {
	return &Config{
		Driver:          driver,
		DSN:             dsn,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}
