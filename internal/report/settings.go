package report

import "github.com/koustreak/contentstats/internal/errs"

// Settings are the analysis windows and row limits of one run.
type Settings struct {
	DaysRecent            int `yaml:"days_recent"`
	DaysEditorActivity    int `yaml:"days_editor_activity"`
	HighRevisionThreshold int `yaml:"high_revision_threshold"`
	HighRevisionLimit     int `yaml:"high_revision_limit"`
	RecentContentLimit    int `yaml:"recent_content_limit"`
	ParagraphListLimit    int `yaml:"paragraph_list_limit"`
	BlockListLimit        int `yaml:"block_list_limit"`
	TaxonomyListLimit     int `yaml:"taxonomy_list_limit"`
	MediaListLimit        int `yaml:"media_list_limit"`
}

// DefaultSettings returns the documented defaults of every window and limit.
func DefaultSettings() Settings {
	return Settings{
		DaysRecent:            90,
		DaysEditorActivity:    180,
		HighRevisionThreshold: 5,
		HighRevisionLimit:     50,
		RecentContentLimit:    50,
		ParagraphListLimit:    500,
		BlockListLimit:        100,
		TaxonomyListLimit:     200,
		MediaListLimit:        100,
	}
}

// Validate rejects non-positive values; every setting is a day count,
// a threshold or a LIMIT.
func (s Settings) Validate() error {
	for _, f := range s.fields() {
		if f.value <= 0 {
			return errs.Newf(errs.ErrKindInvalidInput, "%s must be positive, got %d", f.name, f.value)
		}
	}
	return nil
}

type namedSetting struct {
	name  string
	value int
}

// fields lists the settings under their environment names, in the order
// the report preamble shows them.
func (s Settings) fields() []namedSetting {
	return []namedSetting{
		{"DAYS_RECENT", s.DaysRecent},
		{"DAYS_EDITOR_ACTIVITY", s.DaysEditorActivity},
		{"HIGH_REVISION_THRESHOLD", s.HighRevisionThreshold},
		{"HIGH_REVISION_LIMIT", s.HighRevisionLimit},
		{"RECENT_CONTENT_LIMIT", s.RecentContentLimit},
		{"PARAGRAPH_LIST_LIMIT", s.ParagraphListLimit},
		{"BLOCK_LIST_LIMIT", s.BlockListLimit},
		{"TAXONOMY_LIST_LIMIT", s.TaxonomyListLimit},
		{"MEDIA_LIST_LIMIT", s.MediaListLimit},
	}
}

// Pointers maps each environment name to its field, for loaders that
// override settings one variable at a time.
func (s *Settings) Pointers() map[string]*int {
	return map[string]*int{
		"DAYS_RECENT":             &s.DaysRecent,
		"DAYS_EDITOR_ACTIVITY":    &s.DaysEditorActivity,
		"HIGH_REVISION_THRESHOLD": &s.HighRevisionThreshold,
		"HIGH_REVISION_LIMIT":     &s.HighRevisionLimit,
		"RECENT_CONTENT_LIMIT":    &s.RecentContentLimit,
		"PARAGRAPH_LIST_LIMIT":    &s.ParagraphListLimit,
		"BLOCK_LIST_LIMIT":        &s.BlockListLimit,
		"TAXONOMY_LIST_LIMIT":     &s.TaxonomyListLimit,
		"MEDIA_LIST_LIMIT":        &s.MediaListLimit,
	}
}
