// Package database is the read side of a Drupal snapshot: one DB contract
// with mysql, postgres and sqlite implementations, plus the helpers that
// turn a query into a tabular.Result.
package database

import "context"

// DB is what the schema probe and the analysis run need from a snapshot.
// Packages above this one depend on DB only, never on a concrete driver.
type DB interface {
	Ping(ctx context.Context) error
	Close()

	// Dialect selects placeholder style and identifier quoting.
	Dialect() Dialect

	// Query expects placeholders already in the dialect's style; see Rebind.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// TableExists and IndexExists look in the connection's current schema.
	TableExists(ctx context.Context, table string) (bool, error)
	IndexExists(ctx context.Context, table, index string) (bool, error)

	// CreateIndex adds a plain, non-unique index. It fails if the index
	// already exists; callers check IndexExists first.
	CreateIndex(ctx context.Context, table, index string, columns []string) error
}

// Rows is a forward-only result set. Close must be called even after an
// error.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}
