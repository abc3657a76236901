package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/contentstats/internal/database"
	"github.com/koustreak/contentstats/internal/database/sqlite"
	"github.com/koustreak/contentstats/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unix(s string) int64 {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.Unix()
}

// seedSite builds a small Drupal-shaped snapshot: core node tables plus
// taxonomy, and none of the other optional subsystems.
func seedSite(t *testing.T) *sqlite.Driver {
	t.Helper()
	ctx := context.Background()

	d, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "drupal.sqlite")))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	stmts := []string{
		`CREATE TABLE users_field_data (uid INTEGER, langcode TEXT, name TEXT, default_langcode INTEGER)`,
		`CREATE TABLE node (nid INTEGER PRIMARY KEY, vid INTEGER, type TEXT, uuid TEXT, langcode TEXT)`,
		`CREATE TABLE node_field_data (
			nid INTEGER, vid INTEGER, type TEXT, langcode TEXT, status INTEGER, uid INTEGER,
			title TEXT, created INTEGER, changed INTEGER, default_langcode INTEGER)`,
		`CREATE TABLE node_revision (
			nid INTEGER, vid INTEGER PRIMARY KEY, langcode TEXT, revision_uid INTEGER,
			revision_timestamp INTEGER, revision_log TEXT)`,
		`CREATE TABLE taxonomy_term_field_data (
			tid INTEGER, vid TEXT, langcode TEXT, name TEXT, changed INTEGER, default_langcode INTEGER)`,
	}
	for _, s := range stmts {
		require.NoError(t, d.Exec(ctx, s))
	}

	inserts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO users_field_data VALUES (1, 'en', 'admin', 1), (2, 'en', 'editor', 1)`, nil},
		{`INSERT INTO node VALUES (1, 4, 'article', 'uuid-1', 'en'), (2, 5, 'article', 'uuid-2', 'en'), (3, 6, 'page', 'uuid-3', 'en')`, nil},
		{`INSERT INTO node_field_data VALUES (?, ?, 'article', 'en', 1, 2, 'Hello, world', ?, ?, 1)`,
			[]any{1, 4, unix("2026-05-01"), unix("2026-05-20")}},
		{`INSERT INTO node_field_data VALUES (?, ?, 'article', 'de', 1, 2, 'Hallo, Welt', ?, ?, 0)`,
			[]any{1, 4, unix("2026-05-01"), unix("2026-05-20")}},
		{`INSERT INTO node_field_data VALUES (?, ?, 'article', 'en', 0, 2, 'Draft', ?, ?, 1)`,
			[]any{2, 5, unix("2025-01-01"), unix("2025-02-01")}},
		{`INSERT INTO node_field_data VALUES (?, ?, 'page', 'en', 1, 1, 'About "us"', ?, ?, 1)`,
			[]any{3, 6, unix("2026-04-01"), unix("2026-04-02")}},
		{`INSERT INTO node_revision VALUES (1, 1, 'en', 2, ?, ''), (1, 2, 'en', 2, ?, ''), (1, 4, 'en', 2, ?, '')`,
			[]any{unix("2026-05-01"), unix("2026-05-10"), unix("2026-05-20")}},
		{`INSERT INTO node_revision VALUES (2, 5, 'en', 2, ?, '')`, []any{unix("2025-02-01")}},
		{`INSERT INTO node_revision VALUES (3, 6, 'en', 1, ?, '')`, []any{unix("2026-04-02")}},
		{`INSERT INTO taxonomy_term_field_data VALUES
			(1, 'tags', 'en', 'Drupal', ?, 1), (2, 'tags', 'en', 'Go', ?, 1), (3, 'topics', 'en', 'News', ?, 1)`,
			[]any{unix("2026-01-01"), unix("2026-01-02"), unix("2026-01-03")}},
	}
	for _, in := range inserts {
		require.NoError(t, d.Exec(ctx, in.q, in.args...))
	}
	return d
}

func TestIntegration_SQLiteSnapshot(t *testing.T) {
	ctx := context.Background()
	db := seedSite(t)

	flags, err := schema.Probe(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []schema.Subsystem{schema.Taxonomy}, flags.Available())

	created, err := schema.EnsureIndexes(ctx, db, flags, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	settings := DefaultSettings()
	settings.HighRevisionThreshold = 3

	a, err := New(DBSource{DB: db}, Catalog(), Options{Settings: settings, Clock: fixedClock, Driver: "sqlite"})
	require.NoError(t, err)
	b, err := NewBundle(t.TempDir(), "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "content-analysis-20260601-000000", filepath.Base(b.Dir))

	sum, err := a.Run(ctx, b, flags)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Count(StateFailed), "%+v", sum.Outcomes)
	assert.Equal(t, 6, sum.Count(StateCompleted))
	assert.Equal(t, 9, sum.Count(StateSkipped))

	assert.Equal(t,
		"content_type,total_nodes,published,created_recent,updated_recent\n"+
			"article,2,1,1,1\n"+
			"page,1,1,1,1\n",
		readFile(t, b.ArtifactPath("content-type-activity")))

	assert.Equal(t,
		"editor,revisions,nodes_edited,last_edit\n"+
			"editor,3,1,2026-05-20 00:00\n"+
			"admin,1,1,2026-04-02 00:00\n",
		readFile(t, b.ArtifactPath("editor-activity")))

	assert.Equal(t,
		"nid,content_type,title,revisions,last_changed\n"+
			"1,article,\"Hello, world\",3,2026-05-20 00:00\n",
		readFile(t, b.ArtifactPath("high-revision-content")))

	assert.Equal(t,
		"nid,content_type,title,author,published,last_changed\n"+
			"1,article,\"Hello, world\",editor,1,2026-05-20 00:00\n"+
			"3,page,\"About \"\"us\"\"\",admin,1,2026-04-02 00:00\n",
		readFile(t, b.ArtifactPath("recent-nodes")))

	assert.Equal(t,
		"vocabulary,term_count\n"+
			"tags,2\n"+
			"topics,1\n",
		readFile(t, b.ArtifactPath("taxonomy-summary")))

	report := readFile(t, sum.ReportPath)
	assert.Contains(t, report, "| 3 | page | About \"us\" | admin | 1 | 2026-04-02 00:00 |")
	assert.Contains(t, report, "*media module not detected — skipping.*")
}

// seedOptional adds the content sync, paragraphs, block and media tables
// on top of seedSite, so every subsystem probes as available.
func seedOptional(t *testing.T, d *sqlite.Driver) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`CREATE TABLE cms_content_sync_entity_status (
			id INTEGER PRIMARY KEY, entity_type TEXT, entity_uuid TEXT, flow TEXT,
			last_import INTEGER, last_export INTEGER)`,
		`CREATE TABLE paragraphs_item_field_data (
			id INTEGER, type TEXT, langcode TEXT, parent_type TEXT, parent_id TEXT,
			parent_field_name TEXT, created INTEGER, default_langcode INTEGER)`,
		`CREATE TABLE block_content_field_data (
			id INTEGER, type TEXT, langcode TEXT, info TEXT, reusable INTEGER,
			changed INTEGER, default_langcode INTEGER)`,
		`CREATE TABLE media_field_data (
			mid INTEGER, bundle TEXT, langcode TEXT, name TEXT, uid INTEGER,
			created INTEGER, changed INTEGER, default_langcode INTEGER)`,
	}
	for _, s := range stmts {
		require.NoError(t, d.Exec(ctx, s))
	}

	inserts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO cms_content_sync_entity_status (entity_type, entity_uuid, flow, last_import, last_export) VALUES
			('node', 'uuid-1', 'default', ?, 0), ('node', 'uuid-1', 'other', 0, ?), ('node', 'uuid-3', 'default', 0, ?)`,
			[]any{unix("2026-05-01"), unix("2026-05-02"), unix("2026-04-05")}},
		{`INSERT INTO paragraphs_item_field_data VALUES
			(1, 'text', 'en', 'node', '1', 'field_body', ?, 1),
			(2, 'image', 'en', 'node', '1', 'field_body', ?, 1),
			(3, 'text', 'en', 'block_content', '1', 'field_content', ?, 1)`,
			[]any{unix("2026-05-01"), unix("2026-05-02"), unix("2026-05-03")}},
		{`INSERT INTO block_content_field_data VALUES
			(1, 'basic', 'en', 'Footer, main', 1, ?, 1), (2, 'basic', 'en', 'Promo', 0, ?, 1)`,
			[]any{unix("2026-03-10"), unix("2026-04-10")}},
		{`INSERT INTO media_field_data VALUES
			(1, 'image', 'en', 'hero.jpg', 2, ?, ?, 1), (2, 'document', 'en', 'terms.pdf', 9, ?, ?, 1)`,
			[]any{unix("2026-05-15"), unix("2026-05-16"), unix("2025-01-01"), unix("2025-01-02")}},
	}
	for _, in := range inserts {
		require.NoError(t, d.Exec(ctx, in.q, in.args...))
	}
}

func TestIntegration_EveryQueryRunsOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := seedSite(t)
	seedOptional(t, db)

	for _, an := range Catalog() {
		res, err := database.Fetch(ctx, db, an.Query, an.Args(DefaultSettings(), fixedNow)...)
		require.NoError(t, err, an.Name)
		assert.NoError(t, res.Validate(an.Width()), an.Name)
	}
}

func TestIntegration_FullSiteSnapshot(t *testing.T) {
	ctx := context.Background()
	db := seedSite(t)
	seedOptional(t, db)

	flags, err := schema.Probe(ctx, db)
	require.NoError(t, err)
	assert.Len(t, flags.Available(), 5)

	created, err := schema.EnsureIndexes(ctx, db, flags, nil)
	require.NoError(t, err)
	assert.Equal(t, len(schema.KnownIndexes()), created)

	a, err := New(DBSource{DB: db}, Catalog(), Options{Clock: fixedClock, Driver: "sqlite"})
	require.NoError(t, err)
	b, err := NewBundle(t.TempDir(), "full", fixedNow)
	require.NoError(t, err)

	sum, err := a.Run(ctx, b, flags)
	require.NoError(t, err)
	for _, o := range sum.Outcomes {
		assert.Equal(t, StateCompleted, o.State, "%s: %v", o.Name, o.Err)
	}
	assert.Equal(t, flags, sum.Flags)

	assert.Equal(t,
		"content_type,total_nodes,published,created_recent,updated_recent\n"+
			"page,1,1,1,1\n"+
			"article,1,0,0,0\n",
		readFile(t, b.ArtifactPath("content-type-activity-no-sync")))

	assert.Equal(t,
		"entity_type,flow,entities,imported,exported,last_import,last_export\n"+
			"node,default,2,1,1,2026-05-01 00:00,2026-04-05 00:00\n"+
			"node,other,1,0,1,,2026-05-02 00:00\n",
		readFile(t, b.ArtifactPath("content-sync-status")))

	assert.Equal(t,
		"content_type,total_nodes,imported_nodes,exported_nodes\n"+
			"article,2,1,1\n"+
			"page,1,0,1\n",
		readFile(t, b.ArtifactPath("synced-node-counts")))

	assert.Equal(t,
		"paragraph_type,paragraphs,on_nodes,parent_fields\n"+
			"text,2,1,2\n"+
			"image,1,1,1\n",
		readFile(t, b.ArtifactPath("paragraph-summary")))

	assert.Equal(t,
		"id,block_type,description,last_changed\n"+
			"2,basic,Promo,2026-04-10 00:00\n"+
			"1,basic,\"Footer, main\",2026-03-10 00:00\n",
		readFile(t, b.ArtifactPath("block-list")))

	assert.Equal(t,
		"mid,media_type,name,owner,last_changed\n"+
			"1,image,hero.jpg,editor,2026-05-16 00:00\n"+
			"2,document,terms.pdf,,2025-01-02 00:00\n",
		readFile(t, b.ArtifactPath("media-list")))
}
