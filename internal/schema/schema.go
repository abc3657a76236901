// Package schema detects which optional Drupal subsystems a snapshot
// contains and keeps the supporting indexes the analyses rely on.
package schema

import (
	"context"
	"strconv"
	"strings"
)

// Subsystem names an optional Drupal module whose tables may be absent.
type Subsystem string

const (
	ContentSync Subsystem = "content-sync"
	Paragraphs  Subsystem = "paragraphs"
	Blocks      Subsystem = "blocks"
	Taxonomy    Subsystem = "taxonomy"
	Media       Subsystem = "media"
)

// subsystems is the fixed probe order.
var subsystems = []Subsystem{ContentSync, Paragraphs, Blocks, Taxonomy, Media}

// tables maps each subsystem to the table whose presence signals it.
var tables = map[Subsystem]string{
	ContentSync: "cms_content_sync_entity_status",
	Paragraphs:  "paragraphs_item_field_data",
	Blocks:      "block_content_field_data",
	Taxonomy:    "taxonomy_term_field_data",
	Media:       "media_field_data",
}

// Subsystems returns every known subsystem in probe order.
func Subsystems() []Subsystem {
	out := make([]Subsystem, len(subsystems))
	copy(out, subsystems)
	return out
}

// Table returns the marker table of s, or "" for an unknown subsystem.
func (s Subsystem) Table() string {
	return tables[s]
}

func (s Subsystem) bit() uint8 {
	for i, x := range subsystems {
		if x == s {
			return 1 << i
		}
	}
	return 0
}

// Flags records which subsystems are available. The zero value has every
// subsystem unavailable. Flags is a value type: With returns a copy and
// never changes the receiver.
type Flags struct {
	set uint8
}

// Get reports whether s is available.
func (f Flags) Get(s Subsystem) bool {
	b := s.bit()
	return b != 0 && f.set&b != 0
}

// With returns a copy of f with s set to available.
func (f Flags) With(s Subsystem, available bool) Flags {
	if available {
		f.set |= s.bit()
	} else {
		f.set &^= s.bit()
	}
	return f
}

// Available lists the available subsystems in probe order.
func (f Flags) Available() []Subsystem {
	var out []Subsystem
	for _, s := range subsystems {
		if f.Get(s) {
			out = append(out, s)
		}
	}
	return out
}

// String renders f as "content-sync=false paragraphs=true ...".
func (f Flags) String() string {
	parts := make([]string, len(subsystems))
	for i, s := range subsystems {
		parts[i] = string(s) + "=" + strconv.FormatBool(f.Get(s))
	}
	return strings.Join(parts, " ")
}

// Inspector is the slice of database.DB the probe and index maintainer need.
type Inspector interface {
	TableExists(ctx context.Context, table string) (bool, error)
	IndexExists(ctx context.Context, table, index string) (bool, error)
	CreateIndex(ctx context.Context, table, index string, columns []string) error
}
