package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/tabular"
)

// GeneratedLayout formats the generation timestamp in the preamble.
const GeneratedLayout = "2006-01-02 15:04:05 UTC"

var preambleTmpl = template.Must(template.New("preamble").Parse(
	`# Drupal Content Analysis Report{{if .Site}}: {{.Site}}{{end}}

- **Generated:** {{.Generated}}
- **Site:** {{if .Site}}{{.Site}}{{else}}(not specified){{end}}
- **Database:** {{.Driver}}

This report summarises how content on the site is actually created and edited,
so test effort can go where real editorial activity is.

## Analysis Windows

| Setting | Value |
| --- | --- |
{{range .Settings}}| {{.Name}} | {{.Value}} |
{{end}}`))

var postscriptTmpl = template.Must(template.New("postscript").Parse(
	`## Testing Priorities

| Finding | Section | Test focus |
| --- | --- | --- |
{{range .}}| {{.Finding}} | {{.Section}} | {{.Focus}} |
{{end}}
## Caveats

- Counts come from a database snapshot and reflect the site at the moment it was taken.
- Only the default translation of each entity is counted; translations are not listed separately.
- Content Sync columns only mean something on sites that run the Content Sync module.
- Timestamps are shown in UTC.

## Links

- Drupal entity API: https://www.drupal.org/docs/drupal-apis/entity-api
- Content Sync: https://www.drupal.org/project/cms_content_sync
- Paragraphs: https://www.drupal.org/project/paragraphs
`))

// Meta is what the preamble shows about a run.
type Meta struct {
	Site      string
	Driver    string
	Generated time.Time
	Settings  Settings
}

type priority struct {
	Finding string
	Section string
	Focus   string
}

var priorities = []priority{
	{"Content types with the most recent updates", "Content Type Activity", "Edit forms, revisions and publishing for those types"},
	{"Locally authored types differ from synced ones", "Content Type Activity (Excluding Synced Content)", "Authoring workflows on this site only"},
	{"Flows with frequent imports", "Content Sync Status", "Sync imports, conflicts and re-imports"},
	{"A few editors produce most revisions", "Editor Activity", "The roles and permissions those editors use"},
	{"Nodes with many revisions", "High Revision Content", "Revision history, diffs and rollbacks"},
	{"Heavily used paragraph types", "Paragraph Type Summary", "Paragraph add, reorder and remove on parent forms"},
	{"Reusable blocks in active use", "Custom Block Summary", "Block placement and block library edits"},
	{"Large vocabularies", "Taxonomy Vocabulary Summary", "Term autocomplete, filters and term pages"},
	{"Recent media uploads", "Media Summary", "Upload, media library and embed in text"},
}

// Document is the report being assembled. Sections are appended in call
// order; nothing touches disk until Finalize.
type Document struct {
	path     string
	buf      bytes.Buffer
	final    bool
	sections int
}

type settingRow struct {
	Name  string
	Value int
}

// NewDocument starts a report that Finalize will write to path.
func NewDocument(path string, meta Meta) (*Document, error) {
	d := &Document{path: path}

	view := struct {
		Site      string
		Driver    string
		Generated string
		Settings  []settingRow
	}{
		Site:      meta.Site,
		Driver:    meta.Driver,
		Generated: meta.Generated.UTC().Format(GeneratedLayout),
	}
	if view.Driver == "" {
		view.Driver = "unknown"
	}
	for _, f := range meta.Settings.fields() {
		view.Settings = append(view.Settings, settingRow{Name: f.name, Value: f.value})
	}

	if err := preambleTmpl.Execute(&d.buf, view); err != nil {
		return nil, errs.Wrap(errs.ErrKindUnknown, "failed to render report preamble", err)
	}
	return d, nil
}

// Path is where Finalize writes the document.
func (d *Document) Path() string { return d.path }

func (d *Document) heading(title string) {
	d.sections++
	fmt.Fprintf(&d.buf, "\n## %d. %s\n\n", d.sections, title)
}

// AddTable appends a rendered analysis section.
func (d *Document) AddTable(a Analysis, r *tabular.Result) {
	d.heading(a.Title)
	if a.Prose != "" {
		d.buf.WriteString(a.Prose)
		d.buf.WriteString("\n\n")
	}
	d.buf.WriteString(tabular.RenderMarkdown(a.TableHeader, r))
	if !r.Empty() {
		fmt.Fprintf(&d.buf, "\nRows: %d. Export: `%s.csv`\n", r.Len(), a.Name)
	}
}

// AddNote appends a section holding a single italic note instead of a table.
func (d *Document) AddNote(a Analysis, note string) {
	d.heading(a.Title)
	fmt.Fprintf(&d.buf, "*%s*\n", strings.TrimSpace(note))
}

// Finalize appends the closing sections and writes the document. It may be
// called once.
func (d *Document) Finalize() error {
	if d.final {
		return errs.New(errs.ErrKindInvalidInput, "report already finalized")
	}
	d.buf.WriteString("\n")
	if err := postscriptTmpl.Execute(&d.buf, priorities); err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to render report postscript", err)
	}
	d.final = true

	return tabular.WriteAtomic(d.path, func(w io.Writer) error {
		if _, err := w.Write(d.buf.Bytes()); err != nil {
			return errs.Wrap(errs.ErrKindIO, "failed to write report", err)
		}
		return nil
	})
}

// Bytes returns the document rendered so far.
func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}
