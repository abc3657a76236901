// Package sqlite reads Drupal sites that run on a single SQLite file, using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/koustreak/contentstats/internal/database"
	"github.com/koustreak/contentstats/internal/errs"

	_ "modernc.org/sqlite" // registers "sqlite"
)

var catalog = database.Catalog{
	Table: `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`,
	Index: `SELECT 1 FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name = ?`,
	// Opening is lazy; reading the catalog rejects files that are not databases.
	Probe: `SELECT count(*) FROM sqlite_master`,
}

// Driver is a database.DB over one SQLite file.
type Driver struct {
	*database.SQLDB
}

// New opens the file or file: URI in cfg.DSN.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	if cfg.DSN == "" {
		return nil, errs.New(errs.ErrKindConnectionFailed, "empty sqlite path")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)

	d := &Driver{SQLDB: database.NewSQLDB(db, database.DialectSQLite, catalog, mapError)}
	if err := d.Connect(ctx, cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// SQLite reports failures as text, so classification goes by message.
var kindByMessage = []struct {
	fragment string
	kind     errs.ErrKind
}{
	{"no such table", errs.ErrKindNotFound},
	{"unable to open database", errs.ErrKindConnectionFailed},
	{"file is not a database", errs.ErrKindConnectionFailed},
	{"database disk image is malformed", errs.ErrKindConnectionFailed},
	{"readonly database", errs.ErrKindPermissionDenied},
	{"database is locked", errs.ErrKindTimeout},
}

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

	text := err.Error()
	for _, m := range kindByMessage {
		if strings.Contains(text, m.fragment) {
			return errs.Wrap(m.kind, msg, err)
		}
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
