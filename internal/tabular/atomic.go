package tabular

import (
	"io"
	"os"
	"path/filepath"

	"github.com/koustreak/contentstats/internal/errs"
)

// WriteAtomic creates or replaces path with whatever write produces. The
// content goes to a temporary file in the same directory which is renamed
// over path only once fully written, so a failure leaves no file behind
// and never touches an existing one.
func WriteAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.Wrap(errs.ErrKindIO, "failed to create temp file", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.ErrKindIO, "failed to close temp file", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.ErrKindIO, "failed to set file mode", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.ErrKindIO, "failed to rename into place", err)
	}
	return nil
}
