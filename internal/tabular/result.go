// Package tabular holds the rectangular result model shared by the
// snapshot drivers and the report writers, together with its two
// renderings: a quoted comma-separated file and a markdown table.
package tabular

import "github.com/koustreak/contentstats/internal/errs"

// Result is the row/column data returned by one query execution.
// Every row carries exactly len(Columns) fields. A Result with zero rows is
// valid and distinct from an error.
type Result struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty Result with the given column names.
func New(columns ...string) *Result {
	return &Result{Columns: columns, Rows: make([][]string, 0)}
}

// Append adds one row. It returns an error when the row width differs from
// the column count.
func (r *Result) Append(fields ...string) error {
	if len(fields) != len(r.Columns) {
		return errs.Newf(errs.ErrKindInvalidInput, "row has %d fields, want %d", len(fields), len(r.Columns))
	}
	r.Rows = append(r.Rows, fields)
	return nil
}

// Empty reports whether the result holds no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Validate checks that the result has width columns and that every row
// matches it.
func (r *Result) Validate(width int) error {
	if r == nil {
		return errs.New(errs.ErrKindInvalidInput, "nil result")
	}
	if len(r.Columns) != width {
		return errs.Newf(errs.ErrKindInvalidInput, "result has %d columns, header declares %d", len(r.Columns), width)
	}
	for i, row := range r.Rows {
		if len(row) != width {
			return errs.Newf(errs.ErrKindInvalidInput, "row %d has %d fields, want %d", i, len(row), width)
		}
	}
	return nil
}

// MapColumn rewrites every field of column idx through fn.
func (r *Result) MapColumn(idx int, fn func(string) string) {
	if r == nil || idx < 0 || idx >= len(r.Columns) {
		return
	}
	for _, row := range r.Rows {
		row[idx] = fn(row[idx])
	}
}
