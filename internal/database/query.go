package database

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/contentstats/internal/errs"
)

// Dialect controls which placeholder and identifier-quoting style a
// statement uses.
type Dialect int

const (
	// DialectMySQL uses ? placeholders and `backtick` identifiers.
	DialectMySQL Dialect = iota

	// DialectPostgres uses $1, $2, … placeholders and "double-quoted" identifiers.
	DialectPostgres

	// DialectSQLite uses ? placeholders and "double-quoted" identifiers.
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// identPattern is the allowlist for table, index and column names that are
// spliced into DDL. Identifiers cannot be parameterized, so anything outside
// it is rejected.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidIdent reports whether name is safe to splice into a statement.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// QuoteIdent quotes an identifier for the dialect.
func QuoteIdent(d Dialect, name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Rebind rewrites ? placeholders into the dialect's style. Question marks
// inside single-quoted string literals are left alone.
// Postgres: $1, $2, …   MySQL / SQLite: unchanged
func Rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	inLiteral := false
	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			sb.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			sb.WriteString(fmt.Sprintf("$%d", n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// CreateIndexSQL builds a CREATE INDEX statement after validating every
// identifier against the allowlist.
func CreateIndexSQL(d Dialect, table, index string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", errs.Newf(errs.ErrKindInvalidInput, "index %q has no columns", index)
	}
	for _, name := range append([]string{table, index}, columns...) {
		if !ValidIdent(name) {
			return "", errs.Newf(errs.ErrKindInvalidInput, "invalid identifier %q", name)
		}
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(d, c)
	}

	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		QuoteIdent(d, index), QuoteIdent(d, table), strings.Join(quoted, ", ")), nil
}
