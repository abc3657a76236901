package tabular

import (
	"bufio"
	"io"
	"strings"

	"github.com/koustreak/contentstats/internal/errs"
)

// Separator joins the fields of one CSV line.
const Separator = ","

// EncodeField quotes s when it contains the separator, a double quote or a
// line break, doubling every embedded quote. Anything else is returned as is.
func EncodeField(s string) string {
	if !strings.ContainsAny(s, Separator+"\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// EncodeRow joins the encoded fields of one row.
func EncodeRow(fields []string) string {
	encoded := make([]string, len(fields))
	for i, f := range fields {
		encoded[i] = EncodeField(f)
	}
	return strings.Join(encoded, Separator)
}

// HeaderLine builds a CSV header line from column names.
func HeaderLine(columns ...string) string {
	return EncodeRow(columns)
}

// Encode writes header verbatim as the first line, then one line per row.
// An empty result produces the header line alone.
func Encode(w io.Writer, header string, r *Result) error {
	if w == nil {
		return errs.New(errs.ErrKindInvalidInput, "nil writer")
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(header)
	bw.WriteString("\n")
	if r != nil {
		for _, row := range r.Rows {
			bw.WriteString(EncodeRow(row))
			bw.WriteString("\n")
		}
	}
	if err := bw.Flush(); err != nil {
		return errs.Wrap(errs.ErrKindIO, "failed to write csv", err)
	}
	return nil
}

// WriteFile encodes r into path atomically; see WriteAtomic.
func WriteFile(path, header string, r *Result) error {
	return WriteAtomic(path, func(w io.Writer) error {
		return Encode(w, header, r)
	})
}
