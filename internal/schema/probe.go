package schema

import (
	"context"

	"github.com/koustreak/contentstats/internal/errs"
)

// Probe checks the marker table of every subsystem, once each, and returns
// the resulting Flags. A missing table is not an error; a failing lookup is.
func Probe(ctx context.Context, in Inspector) (Flags, error) {
	var flags Flags
	for _, s := range subsystems {
		ok, err := in.TableExists(ctx, s.Table())
		if err != nil {
			return Flags{}, errs.Wrapf(errs.KindOf(err), err, "failed to probe %s", s)
		}
		flags = flags.With(s, ok)
	}
	return flags, nil
}
