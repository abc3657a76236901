// Package mysql connects to MySQL and MariaDB snapshots through
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/koustreak/contentstats/internal/database"
	"github.com/koustreak/contentstats/internal/errs"
)

var catalog = database.Catalog{
	Table: `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = ?`,
	Index: `
		SELECT 1
		FROM information_schema.statistics
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		  AND index_name   = ?
		LIMIT 1`,
}

// Driver is a database.DB for MySQL. Safe for concurrent use.
type Driver struct {
	*database.SQLDB
}

// New opens a pool for cfg.DSN and pings it.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	mcfg, err := parseDSN(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	conn, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db := sql.OpenDB(conn)
	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := &Driver{SQLDB: database.NewSQLDB(db, database.DialectMySQL, catalog, mapError)}
	if err := d.Connect(ctx, cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// parseDSN reads cfg.DSN and applies the dial timeout from cfg unless the
// DSN sets its own.
func parseDSN(cfg *database.Config) (*mysql.Config, error) {
	mcfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if mcfg.Timeout == 0 {
		mcfg.Timeout = cfg.ConnectTimeout
	}
	return mcfg, nil
}

// Server error numbers, see
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
var kindByCode = map[uint16]errs.ErrKind{
	1040: errs.ErrKindConnectionFailed, // too many connections
	1044: errs.ErrKindConnectionFailed, // access denied to database
	1045: errs.ErrKindConnectionFailed, // access denied for user
	1046: errs.ErrKindConnectionFailed, // no database selected
	1049: errs.ErrKindConnectionFailed, // unknown database
	1203: errs.ErrKindConnectionFailed, // max_user_connections
	1142: errs.ErrKindPermissionDenied, // command denied on table
	1146: errs.ErrKindNotFound,         // table doesn't exist
	1205: errs.ErrKindTimeout,          // lock wait timeout
	1317: errs.ErrKindTimeout,          // query interrupted
	3024: errs.ErrKindTimeout,          // max_execution_time exceeded
}

// mapError classifies go-sql-driver/mysql errors. Server errors not in
// kindByCode are query failures; anything without a server code is a
// transport problem.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	if errs.Interrupted(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var serverErr *mysql.MySQLError
	if errors.As(err, &serverErr) {
		kind, ok := kindByCode[serverErr.Number]
		if !ok {
			kind = errs.ErrKindQueryFailed
		}
		return errs.Wrapf(kind, err, "%s: %s", msg, serverErr.Message)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
