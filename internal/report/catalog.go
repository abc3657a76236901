package report

import (
	"strings"
	"time"

	"github.com/koustreak/contentstats/internal/schema"
)

// Analysis is one named query, rendering and export unit of the report.
type Analysis struct {
	// Name is the artifact basename: <Name>.csv.
	Name  string
	Title string
	Prose string

	// Query uses ? placeholders; Args supplies them in order.
	Query string
	Args  func(s Settings, now time.Time) []any

	// CSVHeader is written verbatim as the first CSV line. TableHeader is
	// the pipe-delimited markdown title row. Both name the same columns.
	CSVHeader   string
	TableHeader string

	// Requires skips the analysis when that subsystem is unavailable.
	// Provides is the subsystem this analysis confirms; a failure clears it.
	Requires schema.Subsystem
	Provides schema.Subsystem

	// TimeColumns are indexes of columns holding unix timestamps.
	TimeColumns []int
}

// Width is the number of columns the CSV header declares.
func (a Analysis) Width() int {
	return len(strings.Split(a.CSVHeader, ","))
}

const day = 24 * time.Hour

func recentCutoff(s Settings, now time.Time) int64 {
	return now.Add(-time.Duration(s.DaysRecent) * day).Unix()
}

func editorCutoff(s Settings, now time.Time) int64 {
	return now.Add(-time.Duration(s.DaysEditorActivity) * day).Unix()
}

func noArgs(Settings, time.Time) []any { return nil }

// Catalog returns the analyses in report order. Later sections refer back
// to earlier ones, so the order is part of the contract.
func Catalog() []Analysis {
	return []Analysis{
		{
			Name:  "content-type-activity",
			Title: "Content Type Activity",
			Prose: "Node counts per content type, with how many were created and updated " +
				"inside the recent window. Types with the most updates carry the busiest editorial workflows.",
			Query: `
SELECT n.type AS content_type,
       COUNT(*) AS total_nodes,
       COUNT(CASE WHEN n.status = 1 THEN 1 END) AS published,
       COUNT(CASE WHEN n.created >= ? THEN 1 END) AS created_recent,
       COUNT(CASE WHEN n.changed >= ? THEN 1 END) AS updated_recent
FROM node_field_data n
WHERE n.default_langcode = 1
GROUP BY n.type
ORDER BY updated_recent DESC, content_type`,
			Args: func(s Settings, now time.Time) []any {
				c := recentCutoff(s, now)
				return []any{c, c}
			},
			CSVHeader:   "content_type,total_nodes,published,created_recent,updated_recent",
			TableHeader: "| Content type | Total | Published | Created (recent) | Updated (recent) |",
		},
		{
			Name:  "content-type-activity-no-sync",
			Title: "Content Type Activity (Excluding Synced Content)",
			Prose: "Same as above, but leaving out nodes imported through Content Sync. " +
				"What remains is content authored on this site.",
			Query: `
SELECT n.type AS content_type,
       COUNT(*) AS total_nodes,
       COUNT(CASE WHEN n.status = 1 THEN 1 END) AS published,
       COUNT(CASE WHEN n.created >= ? THEN 1 END) AS created_recent,
       COUNT(CASE WHEN n.changed >= ? THEN 1 END) AS updated_recent
FROM node_field_data n
JOIN node nd ON nd.nid = n.nid
WHERE n.default_langcode = 1
  AND NOT EXISTS (
      SELECT 1 FROM cms_content_sync_entity_status s
      WHERE s.entity_type = 'node'
        AND s.entity_uuid = nd.uuid
        AND s.last_import > 0)
GROUP BY n.type
ORDER BY updated_recent DESC, content_type`,
			Args: func(s Settings, now time.Time) []any {
				c := recentCutoff(s, now)
				return []any{c, c}
			},
			CSVHeader:   "content_type,total_nodes,published,created_recent,updated_recent",
			TableHeader: "| Content type | Total | Published | Created (recent) | Updated (recent) |",
			Requires:    schema.ContentSync,
		},
		{
			Name:  "content-sync-status",
			Title: "Content Sync Status",
			Prose: "Entities tracked by Content Sync, per entity type and flow, with the latest " +
				"import and export times. Flows with frequent imports need sync regression coverage.",
			Query: `
SELECT s.entity_type,
       s.flow,
       COUNT(*) AS entities,
       COUNT(CASE WHEN s.last_import > 0 THEN 1 END) AS imported,
       COUNT(CASE WHEN s.last_export > 0 THEN 1 END) AS exported,
       MAX(s.last_import) AS last_import,
       MAX(s.last_export) AS last_export
FROM cms_content_sync_entity_status s
GROUP BY s.entity_type, s.flow
ORDER BY entities DESC, entity_type, flow`,
			Args:        noArgs,
			CSVHeader:   "entity_type,flow,entities,imported,exported,last_import,last_export",
			TableHeader: "| Entity type | Flow | Entities | Imported | Exported | Last import | Last export |",
			Requires:    schema.ContentSync,
			Provides:    schema.ContentSync,
			TimeColumns: []int{5, 6},
		},
		{
			Name:  "synced-node-counts",
			Title: "Synced Node Counts",
			Prose: "Per content type, how many nodes arrived through Content Sync and how many were pushed out.",
			Query: `
SELECT n.type AS content_type,
       COUNT(*) AS total_nodes,
       COUNT(CASE WHEN s.imported = 1 THEN 1 END) AS imported_nodes,
       COUNT(CASE WHEN s.exported = 1 THEN 1 END) AS exported_nodes
FROM node_field_data n
JOIN node nd ON nd.nid = n.nid
LEFT JOIN (
    SELECT entity_uuid,
           MAX(CASE WHEN last_import > 0 THEN 1 ELSE 0 END) AS imported,
           MAX(CASE WHEN last_export > 0 THEN 1 ELSE 0 END) AS exported
    FROM cms_content_sync_entity_status
    WHERE entity_type = 'node'
    GROUP BY entity_uuid
) s ON s.entity_uuid = nd.uuid
WHERE n.default_langcode = 1
GROUP BY n.type
ORDER BY imported_nodes DESC, content_type`,
			Args:        noArgs,
			CSVHeader:   "content_type,total_nodes,imported_nodes,exported_nodes",
			TableHeader: "| Content type | Total | Imported | Exported |",
			Requires:    schema.ContentSync,
		},
		{
			Name:  "editor-activity",
			Title: "Editor Activity",
			Prose: "Revisions saved per user inside the editor window. Heavy editors are the " +
				"people whose daily workflows the tests should mirror.",
			Query: `
SELECT u.name AS editor,
       COUNT(*) AS revisions,
       COUNT(DISTINCT r.nid) AS nodes_edited,
       MAX(r.revision_timestamp) AS last_edit
FROM node_revision r
JOIN users_field_data u ON u.uid = r.revision_uid AND u.default_langcode = 1
WHERE r.revision_timestamp >= ?
GROUP BY u.uid, u.name
ORDER BY revisions DESC, editor`,
			Args: func(s Settings, now time.Time) []any {
				return []any{editorCutoff(s, now)}
			},
			CSVHeader:   "editor,revisions,nodes_edited,last_edit",
			TableHeader: "| Editor | Revisions | Nodes edited | Last edit |",
			TimeColumns: []int{3},
		},
		{
			Name:  "high-revision-content",
			Title: "High Revision Content",
			Prose: "Nodes with at least HIGH_REVISION_THRESHOLD revisions. Content that is " +
				"edited over and over exercises revisioning, diffs and moderation.",
			Query: `
SELECT n.nid,
       n.type AS content_type,
       n.title,
       COUNT(r.vid) AS revisions,
       n.changed AS last_changed
FROM node_field_data n
JOIN node_revision r ON r.nid = n.nid
WHERE n.default_langcode = 1
GROUP BY n.nid, n.type, n.title, n.changed
HAVING COUNT(r.vid) >= ?
ORDER BY revisions DESC, n.nid
LIMIT ?`,
			Args: func(s Settings, _ time.Time) []any {
				return []any{s.HighRevisionThreshold, s.HighRevisionLimit}
			},
			CSVHeader:   "nid,content_type,title,revisions,last_changed",
			TableHeader: "| Node | Content type | Title | Revisions | Last changed |",
			TimeColumns: []int{4},
		},
		{
			Name:  "recent-nodes",
			Title: "Recently Changed Content",
			Prose: "The most recently changed nodes inside the recent window.",
			Query: `
SELECT n.nid,
       n.type AS content_type,
       n.title,
       u.name AS author,
       n.status AS published,
       n.changed AS last_changed
FROM node_field_data n
LEFT JOIN users_field_data u ON u.uid = n.uid AND u.default_langcode = 1
WHERE n.default_langcode = 1
  AND n.changed >= ?
ORDER BY n.changed DESC, n.nid DESC
LIMIT ?`,
			Args: func(s Settings, now time.Time) []any {
				return []any{recentCutoff(s, now), s.RecentContentLimit}
			},
			CSVHeader:   "nid,content_type,title,author,published,last_changed",
			TableHeader: "| Node | Content type | Title | Author | Published | Last changed |",
			TimeColumns: []int{5},
		},
		{
			Name:  "paragraph-summary",
			Title: "Paragraph Type Summary",
			Prose: "Paragraph items per paragraph type and how many sit directly on nodes.",
			Query: `
SELECT p.type AS paragraph_type,
       COUNT(*) AS paragraphs,
       COUNT(CASE WHEN p.parent_type = 'node' THEN 1 END) AS on_nodes,
       COUNT(DISTINCT p.parent_field_name) AS parent_fields
FROM paragraphs_item_field_data p
WHERE p.default_langcode = 1
GROUP BY p.type
ORDER BY paragraphs DESC, paragraph_type`,
			Args:        noArgs,
			CSVHeader:   "paragraph_type,paragraphs,on_nodes,parent_fields",
			TableHeader: "| Paragraph type | Paragraphs | On nodes | Parent fields |",
			Requires:    schema.Paragraphs,
			Provides:    schema.Paragraphs,
		},
		{
			Name:  "paragraph-list",
			Title: "Paragraph Usage by Parent Field",
			Prose: "Where each paragraph type is used: parent entity type and field. " +
				"Each combination is a distinct form a tester may need to fill in.",
			Query: `
SELECT p.parent_type,
       p.parent_field_name,
       p.type AS paragraph_type,
       COUNT(*) AS paragraphs,
       MAX(p.created) AS last_created
FROM paragraphs_item_field_data p
WHERE p.default_langcode = 1
GROUP BY p.parent_type, p.parent_field_name, p.type
ORDER BY paragraphs DESC, parent_type, parent_field_name, paragraph_type
LIMIT ?`,
			Args: func(s Settings, _ time.Time) []any {
				return []any{s.ParagraphListLimit}
			},
			CSVHeader:   "parent_type,parent_field_name,paragraph_type,paragraphs,last_created",
			TableHeader: "| Parent type | Parent field | Paragraph type | Paragraphs | Last created |",
			Requires:    schema.Paragraphs,
			TimeColumns: []int{4},
		},
		{
			Name:  "block-summary",
			Title: "Custom Block Summary",
			Prose: "Custom block content per block type, with the reusable share.",
			Query: `
SELECT b.type AS block_type,
       COUNT(*) AS blocks,
       COUNT(CASE WHEN b.reusable = 1 THEN 1 END) AS reusable,
       MAX(b.changed) AS last_changed
FROM block_content_field_data b
WHERE b.default_langcode = 1
GROUP BY b.type
ORDER BY blocks DESC, block_type`,
			Args:        noArgs,
			CSVHeader:   "block_type,blocks,reusable,last_changed",
			TableHeader: "| Block type | Blocks | Reusable | Last changed |",
			Requires:    schema.Blocks,
			Provides:    schema.Blocks,
			TimeColumns: []int{3},
		},
		{
			Name:        "block-list",
			Title:       "Recently Changed Custom Blocks",
			Prose:       "Custom blocks ordered by last change.",
			Query:       blockListQuery,
			Args:        func(s Settings, _ time.Time) []any { return []any{s.BlockListLimit} },
			CSVHeader:   "id,block_type,description,last_changed",
			TableHeader: "| Block | Block type | Description | Last changed |",
			Requires:    schema.Blocks,
			TimeColumns: []int{3},
		},
		{
			Name:  "taxonomy-summary",
			Title: "Taxonomy Vocabulary Summary",
			Prose: "Terms per vocabulary.",
			Query: `
SELECT t.vid AS vocabulary,
       COUNT(*) AS term_count
FROM taxonomy_term_field_data t
WHERE t.default_langcode = 1
GROUP BY t.vid
ORDER BY term_count DESC, vocabulary`,
			Args:        noArgs,
			CSVHeader:   "vocabulary,term_count",
			TableHeader: "vocabulary | term_count",
			Requires:    schema.Taxonomy,
			Provides:    schema.Taxonomy,
		},
		{
			Name:  "taxonomy-list",
			Title: "Taxonomy Terms",
			Prose: "Terms grouped by vocabulary, in name order.",
			Query: `
SELECT t.tid,
       t.vid AS vocabulary,
       t.name,
       t.changed AS last_changed
FROM taxonomy_term_field_data t
WHERE t.default_langcode = 1
ORDER BY vocabulary, name, tid
LIMIT ?`,
			Args:        func(s Settings, _ time.Time) []any { return []any{s.TaxonomyListLimit} },
			CSVHeader:   "tid,vocabulary,name,last_changed",
			TableHeader: "| Term | Vocabulary | Name | Last changed |",
			Requires:    schema.Taxonomy,
			TimeColumns: []int{3},
		},
		{
			Name:  "media-summary",
			Title: "Media Summary",
			Prose: "Media items per media type, with recent uploads. Busy media types point at upload and embed workflows.",
			Query: `
SELECT m.bundle AS media_type,
       COUNT(*) AS media_items,
       COUNT(CASE WHEN m.created >= ? THEN 1 END) AS created_recent,
       MAX(m.changed) AS last_changed
FROM media_field_data m
WHERE m.default_langcode = 1
GROUP BY m.bundle
ORDER BY media_items DESC, media_type`,
			Args: func(s Settings, now time.Time) []any {
				return []any{recentCutoff(s, now)}
			},
			CSVHeader:   "media_type,media_items,created_recent,last_changed",
			TableHeader: "| Media type | Items | Created (recent) | Last changed |",
			Requires:    schema.Media,
			Provides:    schema.Media,
			TimeColumns: []int{3},
		},
		{
			Name:  "media-list",
			Title: "Recently Changed Media",
			Prose: "Media items ordered by last change, with their owner.",
			Query: `
SELECT m.mid,
       m.bundle AS media_type,
       m.name,
       u.name AS owner,
       m.changed AS last_changed
FROM media_field_data m
LEFT JOIN users_field_data u ON u.uid = m.uid AND u.default_langcode = 1
WHERE m.default_langcode = 1
ORDER BY m.changed DESC, m.mid DESC
LIMIT ?`,
			Args:        func(s Settings, _ time.Time) []any { return []any{s.MediaListLimit} },
			CSVHeader:   "mid,media_type,name,owner,last_changed",
			TableHeader: "| Media | Media type | Name | Owner | Last changed |",
			Requires:    schema.Media,
			TimeColumns: []int{4},
		},
	}
}

const blockListQuery = `
SELECT b.id,
       b.type AS block_type,
       b.info AS description,
       b.changed AS last_changed
FROM block_content_field_data b
WHERE b.default_langcode = 1
ORDER BY b.changed DESC, b.id DESC
LIMIT ?`
