package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/tabular"
)

// TimeLayout is how time.Time values are rendered as text.
const TimeLayout = "2006-01-02 15:04:05"

// Fetch runs query against db and collects the whole result set as text.
// The query is written with ? placeholders; Fetch rebinds them for the
// engine's dialect.
func Fetch(ctx context.Context, db DB, query string, args ...any) (*tabular.Result, error) {
	rows, err := db.Query(ctx, Rebind(db.Dialect(), query), args...)
	if err != nil {
		return nil, err
	}
	return ScanRows(rows)
}

// ScanRows reads all rows from the result set into a tabular.Result, where
// each value is rendered with FormatValue.
//
// The returned result always has non-nil Rows (empty slice on zero rows).
// ScanRows always closes the Rows.
func ScanRows(rows Rows) (*tabular.Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := tabular.New(columns...)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		fields := make([]string, len(columns))
		for i, v := range dest {
			fields[i] = FormatValue(v)
		}
		result.Rows = append(result.Rows, fields)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return result, nil
}

// FormatValue renders a driver value as report text. NULL becomes "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(TimeLayout)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
