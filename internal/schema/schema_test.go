package schema

import (
	"bytes"
	"context"
	"testing"

	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	tables    map[string]bool
	indexes   map[string]bool
	probed    []string
	created   []string
	createErr map[string]error
	tableErr  error
}

func newFake(tables ...string) *fakeInspector {
	f := &fakeInspector{tables: map[string]bool{}, indexes: map[string]bool{}, createErr: map[string]error{}}
	for _, t := range tables {
		f.tables[t] = true
	}
	return f
}

func (f *fakeInspector) TableExists(_ context.Context, table string) (bool, error) {
	f.probed = append(f.probed, table)
	if f.tableErr != nil {
		return false, f.tableErr
	}
	return f.tables[table], nil
}

func (f *fakeInspector) IndexExists(_ context.Context, table, index string) (bool, error) {
	return f.indexes[table+"."+index], nil
}

func (f *fakeInspector) CreateIndex(_ context.Context, table, index string, _ []string) error {
	if err := f.createErr[index]; err != nil {
		return err
	}
	f.indexes[table+"."+index] = true
	f.created = append(f.created, index)
	return nil
}

func TestFlags(t *testing.T) {
	var f Flags
	for _, s := range Subsystems() {
		assert.False(t, f.Get(s))
	}

	g := f.With(Paragraphs, true).With(Media, true)
	assert.False(t, f.Get(Paragraphs), "With must not mutate the receiver")
	assert.True(t, g.Get(Paragraphs))
	assert.True(t, g.Get(Media))
	assert.Equal(t, []Subsystem{Paragraphs, Media}, g.Available())

	h := g.With(Paragraphs, false)
	assert.False(t, h.Get(Paragraphs))
	assert.True(t, g.Get(Paragraphs))

	assert.False(t, g.Get(Subsystem("forum")))
	assert.Equal(t, "content-sync=false paragraphs=true blocks=false taxonomy=false media=true", g.String())
}

func TestProbe(t *testing.T) {
	f := newFake("paragraphs_item_field_data", "taxonomy_term_field_data")

	flags, err := Probe(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"cms_content_sync_entity_status",
		"paragraphs_item_field_data",
		"block_content_field_data",
		"taxonomy_term_field_data",
		"media_field_data",
	}, f.probed, "each marker table checked once, in order")
	assert.Equal(t, []Subsystem{Paragraphs, Taxonomy}, flags.Available())
}

func TestProbe_Error(t *testing.T) {
	f := newFake()
	f.tableErr = errs.New(errs.ErrKindConnectionFailed, "gone")

	_, err := Probe(context.Background(), f)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestEnsureIndex(t *testing.T) {
	f := newFake()
	idx := KnownIndexes()[0]

	created, err := EnsureIndex(context.Background(), f, idx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureIndex(context.Background(), f, idx)
	require.NoError(t, err)
	assert.False(t, created, "existing index is left alone")
	assert.Len(t, f.created, 1)
}

func TestEnsureIndexes_SkipsUnavailableAndWarns(t *testing.T) {
	f := newFake()
	f.createErr["contentstats_nfd_created"] = errs.New(errs.ErrKindPermissionDenied, "no INDEX privilege")

	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "debug", Format: "json", Output: &buf})

	flags := Flags{}.With(Paragraphs, true)
	n, err := EnsureIndexes(context.Background(), f, flags, log)
	require.NoError(t, err)

	assert.Equal(t, 4, n)
	assert.Equal(t, []string{
		"contentstats_rev_timestamp",
		"contentstats_rev_uid_timestamp",
		"contentstats_nfd_changed",
		"contentstats_para_parent",
	}, f.created)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "contentstats_nfd_created")
}

func TestEnsureIndexes_ConnectionLossStops(t *testing.T) {
	f := newFake()
	f.createErr["contentstats_rev_timestamp"] = errs.New(errs.ErrKindConnectionFailed, "gone")

	n, err := EnsureIndexes(context.Background(), f, Flags{}, nil)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.Zero(t, n)
	assert.Empty(t, f.created)
}

func TestKnownIndexes_ValidIdentifiers(t *testing.T) {
	for _, idx := range KnownIndexes() {
		assert.Regexp(t, `^[A-Za-z0-9_]+$`, idx.Table)
		assert.Regexp(t, `^[A-Za-z0-9_]+$`, idx.Name)
		assert.NotEmpty(t, idx.Columns)
		if idx.Subsystem != "" {
			assert.Equal(t, idx.Subsystem.Table(), idx.Table)
		}
	}
}
