// Package report runs the content analyses against a snapshot and writes
// the markdown report and per-analysis CSV exports of one run.
package report

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/contentstats/internal/database"
	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/logger"
	"github.com/koustreak/contentstats/internal/schema"
	"github.com/koustreak/contentstats/internal/tabular"
)

// TimeLayout renders unix timestamp columns.
const TimeLayout = "2006-01-02 15:04"

// Source runs one query and returns its rows as text.
type Source interface {
	Fetch(ctx context.Context, query string, args ...any) (*tabular.Result, error)
}

// DBSource adapts a database.DB to Source.
type DBSource struct {
	DB database.DB
}

func (s DBSource) Fetch(ctx context.Context, query string, args ...any) (*tabular.Result, error) {
	return database.Fetch(ctx, s.DB, query, args...)
}

// State is where an analysis ended up.
type State int

const (
	StatePending State = iota
	StateSkipped
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSkipped:
		return "skipped"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome records what happened to one analysis.
type Outcome struct {
	Name     string
	State    State
	Rows     int
	Artifact string // empty unless completed
	Err      error
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	Dir        string
	ReportPath string
	Outcomes   []Outcome
	Flags      schema.Flags
}

// Count returns how many analyses ended in state.
func (s *Summary) Count(state State) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Options tune an Assembler. Zero values fall back to defaults.
type Options struct {
	Settings Settings
	Driver   string
	// Clock is read once per run; inject a fixed one for reproducible output.
	Clock  func() time.Time
	Logger *logger.Logger
}

// Assembler executes analyses in order and collects their output into a
// Bundle.
type Assembler struct {
	source   Source
	analyses []Analysis
	settings Settings
	driver   string
	clock    func() time.Time
	log      *logger.Logger
}

var artifactName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// New validates analyses and returns an Assembler for them. Artifact names
// must be unique and filename-safe, and every TimeColumns index must fall
// inside the CSV header.
func New(src Source, analyses []Analysis, opts Options) (*Assembler, error) {
	if src == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "nil source")
	}

	seen := make(map[string]bool, len(analyses))
	for _, an := range analyses {
		if !artifactName.MatchString(an.Name) {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid analysis name %q", an.Name)
		}
		if seen[an.Name] {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "duplicate analysis name %q", an.Name)
		}
		seen[an.Name] = true

		if an.Query == "" || an.CSVHeader == "" || an.TableHeader == "" {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "analysis %q is missing its query or headers", an.Name)
		}
		if tabular.HeaderLine(strings.Split(an.CSVHeader, ",")...) != an.CSVHeader {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "analysis %q: csv header columns must not need quoting", an.Name)
		}
		if got := tabular.HeaderColumns(an.TableHeader); got != an.Width() {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "analysis %q: table header has %d columns, csv header %d", an.Name, got, an.Width())
		}
		for _, c := range an.TimeColumns {
			if c < 0 || c >= an.Width() {
				return nil, errs.Newf(errs.ErrKindInvalidInput, "analysis %q: time column %d out of range", an.Name, c)
			}
		}
	}

	a := &Assembler{
		source:   src,
		analyses: analyses,
		settings: opts.Settings,
		driver:   opts.Driver,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
	if a.settings == (Settings{}) {
		a.settings = DefaultSettings()
	}
	if a.clock == nil {
		a.clock = time.Now
	}
	if a.log == nil {
		a.log = logger.Nop()
	}
	return a, nil
}

// Run executes every analysis against the source, writing artifacts into
// bundle, and finally persists the report. flags are the probed subsystem
// flags; the returned Summary carries them as updated by the analyses.
//
// A connection failure or timeout aborts the run and is returned together
// with the outcomes so far. Any other analysis failure is recorded in the
// report and the run continues.
func (a *Assembler) Run(ctx context.Context, bundle *Bundle, flags schema.Flags) (*Summary, error) {
	now := a.clock()

	sum := &Summary{Dir: bundle.Dir, ReportPath: bundle.ReportPath(), Flags: flags}

	doc, err := NewDocument(bundle.ReportPath(), Meta{
		Site:      bundle.Site,
		Driver:    a.driver,
		Generated: now,
		Settings:  a.settings,
	})
	if err != nil {
		return sum, err
	}

	for _, an := range a.analyses {
		var out Outcome
		out, flags, err = a.step(ctx, doc, bundle, an, flags, now)
		sum.Outcomes = append(sum.Outcomes, out)
		sum.Flags = flags

		a.log.With().
			Str("analysis", an.Name).
			Str("state", out.State.String()).
			Int("rows", out.Rows).
			Logger().Info("analysis done")

		if err != nil {
			a.log.ErrorWith("run aborted", err, logger.Fields{"analysis": an.Name})
			return sum, err
		}
	}

	if err := doc.Finalize(); err != nil {
		return sum, err
	}
	return sum, nil
}

// step runs a single analysis. It returns the outcome, the flags as this
// analysis leaves them, and a non-nil error only when the run must stop.
func (a *Assembler) step(ctx context.Context, doc *Document, bundle *Bundle, an Analysis, flags schema.Flags, now time.Time) (Outcome, schema.Flags, error) {
	out := Outcome{Name: an.Name, State: StatePending}

	if an.Requires != "" && !flags.Get(an.Requires) {
		doc.AddNote(an, fmt.Sprintf("%s module not detected — skipping.", an.Requires))
		out.State = StateSkipped
		return out, flags, nil
	}

	var args []any
	if an.Args != nil {
		args = an.Args(a.settings, now)
	}

	res, err := a.source.Fetch(ctx, an.Query, args...)
	if err == nil {
		err = res.Validate(an.Width())
	}
	if err != nil {
		out.State = StateFailed
		out.Err = err
		if errs.Aborts(err) {
			return out, flags, err
		}
		doc.AddNote(an, "Query failed, section omitted: "+noteText(err))
		if an.Provides != "" {
			flags = flags.With(an.Provides, false)
		}
		return out, flags, nil
	}

	for _, c := range an.TimeColumns {
		res.MapColumn(c, FormatUnix)
	}

	path := bundle.ArtifactPath(an.Name)
	if err := tabular.WriteFile(path, an.CSVHeader, res); err != nil {
		out.State = StateFailed
		out.Err = err
		doc.AddNote(an, "Export failed, section omitted: "+noteText(err))
		return out, flags, nil
	}

	doc.AddTable(an, res)
	out.State = StateCompleted
	out.Rows = res.Len()
	out.Artifact = path
	if an.Provides != "" {
		flags = flags.With(an.Provides, true)
	}
	return out, flags, nil
}

// FormatUnix renders a unix timestamp field as TimeLayout in UTC. Empty and
// zero values mean "never" and render empty; anything unparsable is kept.
func FormatUnix(field string) string {
	field = strings.TrimSpace(field)
	if field == "" || field == "0" {
		return ""
	}
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return field
	}
	return time.Unix(n, 0).UTC().Format(TimeLayout)
}

// noteText flattens err onto one markdown line.
func noteText(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	return strings.NewReplacer("*", `\*`, "|", `\|`).Replace(msg)
}
