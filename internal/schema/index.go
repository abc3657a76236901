package schema

import (
	"context"

	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/logger"
)

// Index is a supporting index the analyses benefit from. Subsystem is
// empty for indexes on core node tables.
type Index struct {
	Table     string
	Name      string
	Columns   []string
	Subsystem Subsystem
}

// KnownIndexes returns the indexes EnsureIndexes maintains, in creation order.
func KnownIndexes() []Index {
	return []Index{
		{Table: "node_revision", Name: "contentstats_rev_timestamp", Columns: []string{"revision_timestamp"}},
		{Table: "node_revision", Name: "contentstats_rev_uid_timestamp", Columns: []string{"revision_uid", "revision_timestamp"}},
		{Table: "node_field_data", Name: "contentstats_nfd_changed", Columns: []string{"changed"}},
		{Table: "node_field_data", Name: "contentstats_nfd_created", Columns: []string{"created"}},
		{
			Table:     "cms_content_sync_entity_status",
			Name:      "contentstats_cs_entity",
			Columns:   []string{"entity_type", "entity_uuid"},
			Subsystem: ContentSync,
		},
		{
			Table:     "paragraphs_item_field_data",
			Name:      "contentstats_para_parent",
			Columns:   []string{"parent_type", "parent_id"},
			Subsystem: Paragraphs,
		},
	}
}

// EnsureIndex creates idx unless it already exists. It reports whether the
// index was created by this call.
func EnsureIndex(ctx context.Context, in Inspector, idx Index) (bool, error) {
	exists, err := in.IndexExists(ctx, idx.Table, idx.Name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := in.CreateIndex(ctx, idx.Table, idx.Name, idx.Columns); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureIndexes walks KnownIndexes, skipping those on unavailable
// subsystems. Failures are logged at warn level and never stop the walk,
// except a lost connection or timeout, which is returned.
func EnsureIndexes(ctx context.Context, in Inspector, flags Flags, log *logger.Logger) (created int, err error) {
	if log == nil {
		log = logger.Nop()
	}
	for _, idx := range KnownIndexes() {
		if idx.Subsystem != "" && !flags.Get(idx.Subsystem) {
			continue
		}
		ok, err := EnsureIndex(ctx, in, idx)
		if err != nil {
			if errs.Aborts(err) {
				return created, err
			}
			log.WarnWith("could not ensure index", err, logger.Fields{
				"index": idx.Name,
				"table": idx.Table,
			})
			continue
		}
		if ok {
			created++
			log.With().Str("table", idx.Table).Str("index", idx.Name).Logger().Info("created index")
		}
	}
	return created, nil
}
