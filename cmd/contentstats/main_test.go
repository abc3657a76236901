package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/contentstats/internal/database"
	"github.com/koustreak/contentstats/internal/database/sqlite"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		site    string
		siteSet bool
		wantErr bool
	}{
		{name: "no flags", args: nil},
		{name: "site with equals", args: []string{"--site=prod"}, site: "prod", siteSet: true},
		{name: "site separate value", args: []string{"--site", "stage"}, site: "stage", siteSet: true},
		{name: "empty site", args: []string{"--site="}, wantErr: true},
		{name: "site that sanitizes to nothing", args: []string{"--site=..."}, wantErr: true},
		{name: "unknown flag", args: []string{"--verbose"}, wantErr: true},
		{name: "stray argument", args: []string{"prod"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			opts, err := parseFlags(tt.args, &stderr)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, stderr.String(), "Usage: contentstats")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.site, opts.site)
			assert.Equal(t, tt.siteSet, opts.siteSet)
			assert.Equal(t, ".env", opts.envFile)
		})
	}
}

func TestParseFlags_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseFlags([]string{"--help"}, &stderr)
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestRun_UsageErrorExitsTwo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run([]string{"--nope"}, &stdout, &stderr))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Usage: contentstats")
	assert.Contains(t, stderr.String(), "Error: unknown flag: --nope")
}

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, k := range []string{"DB_DSN", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "PUBLISH_ENABLED", "SITE_NAME"} {
		// Setenv registers the restore; the variable itself must be absent.
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("LOG_FORMAT", "json")
	return dir
}

func TestRun_UnreachableDatabase(t *testing.T) {
	dir := isolateEnv(t)
	t.Setenv("DB_NAME", filepath.Join(dir, "missing", "drupal.sqlite"))

	var stdout, stderr bytes.Buffer
	code := run([]string{"--env-file", filepath.Join(dir, "none.env")}, &stdout, &stderr)

	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr.String(), "cannot connect to sqlite database")
	_, err := os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(err), "no bundle is created when the database is unreachable")
}

func TestRun_CoreOnlySnapshot(t *testing.T) {
	dir := isolateEnv(t)
	dbPath := filepath.Join(dir, "drupal.sqlite")
	t.Setenv("DB_NAME", dbPath)

	ctx := context.Background()
	db, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, dbPath))
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE users_field_data (uid INTEGER, name TEXT, default_langcode INTEGER)`,
		`CREATE TABLE node (nid INTEGER, uuid TEXT)`,
		`CREATE TABLE node_field_data (nid INTEGER, type TEXT, status INTEGER, uid INTEGER,
			title TEXT, created INTEGER, changed INTEGER, default_langcode INTEGER)`,
		`CREATE TABLE node_revision (nid INTEGER, vid INTEGER, revision_uid INTEGER, revision_timestamp INTEGER)`,
	} {
		require.NoError(t, db.Exec(ctx, stmt))
	}
	db.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"--site=qa site", "--env-file", filepath.Join(dir, "none.env")}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Contains(t, stdout.String(), "Completed: 4  Skipped: 11  Failed: 0")
	assert.Contains(t, stdout.String(), "content-type-activity")
	assert.Regexp(t, `high-revision-content\s+completed`, stdout.String())
	assert.Contains(t, stdout.String(), "Subsystems: content-sync=false paragraphs=false")

	matches, err := filepath.Glob(filepath.Join(dir, "out", "content-analysis-qa-site-*", "content-analysis-report.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	body, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "# Drupal Content Analysis Report: qa-site")
	assert.Contains(t, string(body), "- **Database:** sqlite")
}
