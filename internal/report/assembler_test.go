package report

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/schema"
	"github.com/koustreak/contentstats/internal/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// fakeSource answers queries by analysis name. Unknown analyses get an
// empty result shaped like their CSV header.
type fakeSource struct {
	byQuery map[string]Analysis
	results map[string]*tabular.Result
	errors  map[string]error
	calls   []string
}

func newFakeSource(analyses []Analysis) *fakeSource {
	f := &fakeSource{
		byQuery: map[string]Analysis{},
		results: map[string]*tabular.Result{},
		errors:  map[string]error{},
	}
	for _, an := range analyses {
		f.byQuery[an.Query] = an
	}
	return f
}

func (f *fakeSource) Fetch(_ context.Context, query string, _ ...any) (*tabular.Result, error) {
	an := f.byQuery[query]
	f.calls = append(f.calls, an.Name)
	if err := f.errors[an.Name]; err != nil {
		return nil, err
	}
	if r, ok := f.results[an.Name]; ok {
		return r, nil
	}
	return tabular.New(strings.Split(an.CSVHeader, ",")...), nil
}

func newRun(t *testing.T, src Source, analyses []Analysis) (*Assembler, *Bundle) {
	t.Helper()
	a, err := New(src, analyses, Options{Clock: fixedClock, Driver: "sqlite"})
	require.NoError(t, err)
	b, err := NewBundle(t.TempDir(), "demo", fixedNow)
	require.NoError(t, err)
	return a, b
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func byName(sum *Summary) map[string]Outcome {
	m := map[string]Outcome{}
	for _, o := range sum.Outcomes {
		m[o.Name] = o
	}
	return m
}

func TestCatalog(t *testing.T) {
	names := []string{}
	for _, an := range Catalog() {
		names = append(names, an.Name)
	}
	assert.Equal(t, []string{
		"content-type-activity", "content-type-activity-no-sync", "content-sync-status",
		"synced-node-counts", "editor-activity", "high-revision-content", "recent-nodes",
		"paragraph-summary", "paragraph-list", "block-summary", "block-list",
		"taxonomy-summary", "taxonomy-list", "media-summary", "media-list",
	}, names)

	_, err := New(newFakeSource(nil), Catalog(), Options{})
	require.NoError(t, err, "catalog must pass assembler validation")

	for _, an := range Catalog() {
		assert.Equal(t, strings.Count(an.Query, "?"), len(an.Args(DefaultSettings(), fixedNow)),
			"%s: placeholder count must match args", an.Name)
		if an.Provides != "" {
			assert.Equal(t, an.Provides, an.Requires, "%s confirms the flag it depends on", an.Name)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	base := Catalog()[0]

	dup := []Analysis{base, base}
	_, err := New(newFakeSource(dup), dup, Options{})
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "duplicate")

	bad := base
	bad.Name = "../escape"
	_, err = New(newFakeSource(nil), []Analysis{bad}, Options{})
	assert.True(t, errs.IsInvalidInput(err))

	mismatch := base
	mismatch.TableHeader = "| only | two |"
	_, err = New(newFakeSource(nil), []Analysis{mismatch}, Options{})
	assert.True(t, errs.IsInvalidInput(err))

	quoted := base
	quoted.CSVHeader = `content_type,"total",published,created_recent,updated_recent`
	_, err = New(newFakeSource(nil), []Analysis{quoted}, Options{})
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "must not need quoting")

	outOfRange := base
	outOfRange.TimeColumns = []int{9}
	_, err = New(newFakeSource(nil), []Analysis{outOfRange}, Options{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = New(nil, Catalog(), Options{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestRun_SkippedAnalysesNeverQuery(t *testing.T) {
	src := newFakeSource(Catalog())
	a, b := newRun(t, src, Catalog())

	sum, err := a.Run(context.Background(), b, schema.Flags{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"content-type-activity", "editor-activity", "high-revision-content", "recent-nodes",
	}, src.calls)
	assert.Equal(t, 11, sum.Count(StateSkipped))
	assert.Equal(t, 4, sum.Count(StateCompleted))

	report := readFile(t, sum.ReportPath)
	for i, an := range Catalog() {
		_, statErr := os.Stat(b.ArtifactPath(an.Name))
		if an.Requires == "" {
			assert.NoError(t, statErr, an.Name)
			continue
		}
		assert.True(t, os.IsNotExist(statErr), "%s must not write an artifact", an.Name)
		assert.Equal(t, 1, strings.Count(report, "## "+strconv.Itoa(i+1)+". "+an.Title+"\n\n*"+string(an.Requires)+" module not detected"),
			"%s adds exactly one note", an.Name)
	}
}

func TestRun_EmptyTaxonomySummary(t *testing.T) {
	src := newFakeSource(Catalog())
	a, b := newRun(t, src, Catalog())

	flags := schema.Flags{}.With(schema.Taxonomy, true)
	sum, err := a.Run(context.Background(), b, flags)
	require.NoError(t, err)

	assert.Equal(t, "vocabulary,term_count\n", readFile(t, b.ArtifactPath("taxonomy-summary")))

	report := readFile(t, sum.ReportPath)
	section := report[strings.Index(report, "Taxonomy Vocabulary Summary"):]
	section = section[:strings.Index(section, "\n## ")]
	assert.Contains(t, section, tabular.NoDataMarker)
	assert.NotContains(t, section, "| --- |")
	assert.True(t, sum.Flags.Get(schema.Taxonomy))
}

func TestRun_FailureClearsProvidedFlag(t *testing.T) {
	src := newFakeSource(Catalog())
	src.errors["paragraph-summary"] = errs.New(errs.ErrKindQueryFailed, "Unknown column 'p.parent_field_name'")
	a, b := newRun(t, src, Catalog())

	flags := schema.Flags{}.With(schema.Paragraphs, true)
	sum, err := a.Run(context.Background(), b, flags)
	require.NoError(t, err)

	got := byName(sum)
	assert.Equal(t, StateFailed, got["paragraph-summary"].State)
	assert.Equal(t, StateSkipped, got["paragraph-list"].State, "dependant reads the flag the summary left")
	assert.False(t, sum.Flags.Get(schema.Paragraphs))
	assert.True(t, flags.Get(schema.Paragraphs), "caller's flags are untouched")
	assert.NotContains(t, src.calls, "paragraph-list")

	_, statErr := os.Stat(b.ArtifactPath("paragraph-summary"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Contains(t, readFile(t, sum.ReportPath), "Query failed, section omitted")
}

func TestRun_ColumnMismatchFails(t *testing.T) {
	src := newFakeSource(Catalog())
	src.results["recent-nodes"] = &tabular.Result{Columns: []string{"nid"}, Rows: [][]string{{"1"}}}
	a, b := newRun(t, src, Catalog())

	sum, err := a.Run(context.Background(), b, schema.Flags{})
	require.NoError(t, err)

	out := byName(sum)["recent-nodes"]
	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errs.IsInvalidInput(out.Err))
}

func TestRun_ConnectionLossAborts(t *testing.T) {
	src := newFakeSource(Catalog())
	src.errors["editor-activity"] = errs.New(errs.ErrKindConnectionFailed, "server has gone away")
	a, b := newRun(t, src, Catalog())

	sum, err := a.Run(context.Background(), b, schema.Flags{})
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))

	assert.Len(t, sum.Outcomes, 5)
	_, statErr := os.Stat(sum.ReportPath)
	assert.True(t, os.IsNotExist(statErr), "an aborted run does not finalize the report")
	_, statErr = os.Stat(b.ArtifactPath("content-type-activity"))
	assert.NoError(t, statErr, "artifacts written before the failure stay")
}

func TestRun_Deterministic(t *testing.T) {
	results := map[string]*tabular.Result{
		"content-type-activity": {
			Columns: []string{"content_type", "total_nodes", "published", "created_recent", "updated_recent"},
			Rows:    [][]string{{"article", "10", "8", "2", "5"}, {"page", "3", "3", "0", "1"}},
		},
		"editor-activity": {
			Columns: []string{"editor", "revisions", "nodes_edited", "last_edit"},
			Rows:    [][]string{{`He said "hi", once`, "4", "2", "1780000000"}},
		},
	}

	run := func() (*Summary, *Bundle) {
		src := newFakeSource(Catalog())
		for k, v := range results {
			// Copy: the assembler rewrites time columns in place.
			rows := make([][]string, len(v.Rows))
			for i, r := range v.Rows {
				rows[i] = append([]string(nil), r...)
			}
			src.results[k] = &tabular.Result{Columns: v.Columns, Rows: rows}
		}
		a, b := newRun(t, src, Catalog())
		sum, err := a.Run(context.Background(), b, schema.Flags{}.With(schema.Media, true))
		require.NoError(t, err)
		return sum, b
	}

	s1, b1 := run()
	s2, b2 := run()

	assert.Equal(t, filepath.Base(b1.Dir), filepath.Base(b2.Dir))
	assert.NotEqual(t, b1.Dir, b2.Dir)
	assert.Equal(t, readFile(t, s1.ReportPath), readFile(t, s2.ReportPath))
	for _, o := range s1.Outcomes {
		if o.Artifact == "" {
			continue
		}
		assert.Equal(t, readFile(t, o.Artifact), readFile(t, filepath.Join(b2.Dir, filepath.Base(o.Artifact))))
	}

	assert.Equal(t,
		"editor,revisions,nodes_edited,last_edit\n\"He said \"\"hi\"\", once\",4,2,2026-05-28 20:26\n",
		readFile(t, b1.ArtifactPath("editor-activity")))
}

func TestRun_ReportLayout(t *testing.T) {
	src := newFakeSource(Catalog())
	a, b := newRun(t, src, Catalog())

	sum, err := a.Run(context.Background(), b, schema.Flags{})
	require.NoError(t, err)
	report := readFile(t, sum.ReportPath)

	assert.True(t, strings.HasPrefix(report, "# Drupal Content Analysis Report: demo\n"))
	assert.Contains(t, report, "**Generated:** 2026-06-01 00:00:00 UTC")
	assert.Contains(t, report, "| DAYS_RECENT | 90 |")
	assert.Contains(t, report, "| MEDIA_LIST_LIMIT | 100 |")

	last := -1
	for i, an := range Catalog() {
		idx := strings.Index(report, "## "+strconv.Itoa(i+1)+". "+an.Title+"\n")
		require.Greater(t, idx, last, "section %s out of order", an.Name)
		last = idx
	}
	assert.Greater(t, strings.Index(report, "## Testing Priorities"), last)
	assert.True(t, strings.HasSuffix(report, "https://www.drupal.org/project/paragraphs\n"))
}

func TestFormatUnix(t *testing.T) {
	assert.Equal(t, "2026-06-01 00:00", FormatUnix("1780272000"))
	assert.Equal(t, "", FormatUnix(""))
	assert.Equal(t, "", FormatUnix("0"))
	assert.Equal(t, "yesterday", FormatUnix("yesterday"))
}

func TestSummaryCount(t *testing.T) {
	s := &Summary{Outcomes: []Outcome{{State: StateCompleted}, {State: StateSkipped}, {State: StateCompleted}}}
	assert.Equal(t, 2, s.Count(StateCompleted))
	assert.Equal(t, 0, s.Count(StateFailed))
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "pending", StatePending.String())
}
