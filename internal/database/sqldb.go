package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/koustreak/contentstats/internal/errs"
)

// ErrorMapper classifies a backend error. msg describes the operation.
type ErrorMapper func(err error, msg string) *errs.Error

// Catalog holds the engine-specific lookups SQLDB needs. Each query
// selects a single row when the object exists and none otherwise.
type Catalog struct {
	Table string // args: table
	Index string // args: table, index

	// Probe, if set, runs after the ping. It catches backends that accept
	// a connection before they ever read the data.
	Probe string
}

// SQLDB implements DB on top of database/sql. The mysql and sqlite drivers
// embed it and supply their catalog queries and error mapping.
type SQLDB struct {
	db      *sql.DB
	dialect Dialect
	catalog Catalog
	mapErr  ErrorMapper
}

// NewSQLDB wraps an opened pool.
func NewSQLDB(db *sql.DB, dialect Dialect, catalog Catalog, mapErr ErrorMapper) *SQLDB {
	return &SQLDB{db: db, dialect: dialect, catalog: catalog, mapErr: mapErr}
}

// Connect pings within cfg.ConnectTimeout and closes the pool on failure.
func (s *SQLDB) Connect(ctx context.Context, cfg *Config) error {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.db.Close()
		return err
	}
	return nil
}

func (s *SQLDB) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.mapErr(err, "ping failed")
	}
	if s.catalog.Probe == "" {
		return nil
	}
	var discard any
	if err := s.db.QueryRowContext(ctx, s.catalog.Probe).Scan(&discard); err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "ping failed", err)
	}
	return nil
}

func (s *SQLDB) Close() { _ = s.db.Close() }

func (s *SQLDB) Dialect() Dialect { return s.dialect }

func (s *SQLDB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapErr(err, "query failed")
	}
	return sqlRows{rows}, nil
}

// Exec runs a statement that returns no rows.
func (s *SQLDB) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.mapErr(err, "exec failed")
	}
	return nil
}

func (s *SQLDB) TableExists(ctx context.Context, table string) (bool, error) {
	return s.exists(ctx, "failed to check table existence", s.catalog.Table, table)
}

func (s *SQLDB) IndexExists(ctx context.Context, table, index string) (bool, error) {
	return s.exists(ctx, "failed to check index existence", s.catalog.Index, table, index)
}

func (s *SQLDB) CreateIndex(ctx context.Context, table, index string, columns []string) error {
	stmt, err := CreateIndexSQL(s.dialect, table, index, columns)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return s.mapErr(err, "failed to create index "+index)
	}
	return nil
}

func (s *SQLDB) exists(ctx context.Context, msg, query string, args ...any) (bool, error) {
	var discard any
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&discard)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, s.mapErr(err, msg)
	}
}

type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }
