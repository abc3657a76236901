package report

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/koustreak/contentstats/internal/errs"
)

const (
	// BundlePrefix starts every run directory name.
	BundlePrefix = "content-analysis"
	// ReportFile is the report document inside a bundle.
	ReportFile = "content-analysis-report.md"
	// StampLayout is the sortable timestamp suffix of a run directory.
	StampLayout = "20060102-150405"
)

// Bundle is the directory that holds one run's report and artifacts.
type Bundle struct {
	Dir  string
	Site string
}

// SanitizeSite makes a site label safe for a directory name: anything
// outside [A-Za-z0-9._-] becomes '-', and leading dots are dropped.
func SanitizeSite(site string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(site))
	return strings.TrimLeft(s, ".")
}

// BundleName returns the directory name for a run started at now.
func BundleName(site string, now time.Time) string {
	name := BundlePrefix
	if site != "" {
		name += "-" + site
	}
	return name + "-" + now.UTC().Format(StampLayout)
}

// NewBundle creates a fresh run directory under root. An existing directory
// with the same name is an error; a bundle is never reused.
func NewBundle(root, site string, now time.Time) (*Bundle, error) {
	site = SanitizeSite(site)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrapf(errs.ErrKindIO, err, "failed to create output root %s", root)
	}

	dir := filepath.Join(root, BundleName(site, now))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, errs.Wrapf(errs.ErrKindIO, err, "failed to create output directory %s", dir)
	}
	return &Bundle{Dir: dir, Site: site}, nil
}

// ReportPath is where the report document goes.
func (b *Bundle) ReportPath() string {
	return filepath.Join(b.Dir, ReportFile)
}

// ArtifactPath is where the CSV export of the named analysis goes.
func (b *Bundle) ArtifactPath(name string) string {
	return filepath.Join(b.Dir, name+".csv")
}
