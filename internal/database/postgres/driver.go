// Package postgres connects to PostgreSQL snapshots through a pgx pool.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/contentstats/internal/database"
	"github.com/koustreak/contentstats/internal/errs"
)

// ApplicationName identifies report sessions in pg_stat_activity.
const ApplicationName = "contentstats"

const (
	tableExistsSQL = `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = $1`
	indexExistsSQL = `
		SELECT 1
		FROM pg_indexes
		WHERE schemaname = current_schema()
		  AND tablename  = $1
		  AND indexname  = $2`
)

// Driver is a database.DB backed by pgxpool. Safe for concurrent use.
type Driver struct {
	pool *pgxpool.Pool
}

// New builds the pool from cfg and pings it.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	d := &Driver{pool: pool}
	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

func poolConfig(cfg *database.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return pc, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() { d.pool.Close() }

func (d *Driver) Dialect() database.Dialect { return database.DialectPostgres }

func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return pgxRows{rows}, nil
}

func (d *Driver) TableExists(ctx context.Context, table string) (bool, error) {
	return d.exists(ctx, "failed to check table existence", tableExistsSQL, table)
}

func (d *Driver) IndexExists(ctx context.Context, table, index string) (bool, error) {
	return d.exists(ctx, "failed to check index existence", indexExistsSQL, table, index)
}

func (d *Driver) CreateIndex(ctx context.Context, table, index string, columns []string) error {
	stmt, err := database.CreateIndexSQL(database.DialectPostgres, table, index, columns)
	if err != nil {
		return err
	}
	if _, err := d.pool.Exec(ctx, stmt); err != nil {
		return mapError(err, "failed to create index "+index)
	}
	return nil
}

func (d *Driver) exists(ctx context.Context, msg, q string, args ...any) (bool, error) {
	var one int
	switch err := d.pool.QueryRow(ctx, q, args...).Scan(&one); {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, mapError(err, msg)
	}
}

// pgxRows adapts pgx.Rows, whose Columns come from field descriptions.
type pgxRows struct{ pgx.Rows }

func (r pgxRows) Columns() ([]string, error) {
	descs := r.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

// SQLSTATE codes and classes, see
// https://www.postgresql.org/docs/current/errcodes-appendix.html
var (
	kindByClass = map[string]errs.ErrKind{
		"08": errs.ErrKindConnectionFailed, // connection exception
		"28": errs.ErrKindConnectionFailed, // invalid authorization
		"3D": errs.ErrKindConnectionFailed, // invalid catalog name
		"53": errs.ErrKindConnectionFailed, // insufficient resources
		"57": errs.ErrKindConnectionFailed, // operator intervention
	}
	kindByCode = map[string]errs.ErrKind{
		"42501": errs.ErrKindPermissionDenied, // insufficient_privilege
		"42P01": errs.ErrKindNotFound,         // undefined_table
		"57014": errs.ErrKindTimeout,          // query_canceled, statement_timeout
		"55P03": errs.ErrKindTimeout,          // lock_not_available
	}
)

func classifySQLState(code string) errs.ErrKind {
	if kind, ok := kindByCode[code]; ok {
		return kind
	}
	if len(code) >= 2 {
		if kind, ok := kindByClass[code[:2]]; ok {
			return kind
		}
	}
	return errs.ErrKindQueryFailed
}

// mapError classifies pgx errors. Anything without a SQLSTATE is a
// transport problem.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	if errs.Interrupted(err) || pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrapf(classifySQLState(pgErr.Code), err, "%s: %s", msg, pgErr.Message)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
