package server

import (
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/report"
)

var (
	runName  = regexp.MustCompile(`^` + report.BundlePrefix + `(?:-([A-Za-z0-9._-]+))?-(\d{8}-\d{6})$`)
	fileName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.csv$`)
)

// Run is one report bundle found under the output root.
type Run struct {
	Name      string    `json:"name"`
	Site      string    `json:"site,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Complete  bool      `json:"complete"`
	Artifacts []string  `json:"artifacts"`
}

// parseRunName splits a bundle directory name into site and start time.
func parseRunName(name string) (site string, started time.Time, ok bool) {
	m := runName.FindStringSubmatch(name)
	if m == nil || strings.Contains(name, "..") {
		return "", time.Time{}, false
	}
	t, err := time.Parse(report.StampLayout, m[2])
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], t, true
}

// listRuns finds bundle directories in fsys, newest first.
func listRuns(fsys fs.FS) ([]Run, error) {
	matches, err := doublestar.Glob(fsys, report.BundlePrefix+"*/*", doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindIO, "failed to scan output directory", err)
	}

	byName := map[string]*Run{}
	for _, m := range matches {
		dir, file := path.Split(m)
		dir = strings.TrimSuffix(dir, "/")
		site, started, ok := parseRunName(dir)
		if !ok {
			continue
		}
		r := byName[dir]
		if r == nil {
			r = &Run{Name: dir, Site: site, StartedAt: started, Artifacts: []string{}}
			byName[dir] = r
		}
		switch {
		case file == report.ReportFile:
			r.Complete = true
		case fileName.MatchString(file):
			r.Artifacts = append(r.Artifacts, file)
		}
	}

	runs := make([]Run, 0, len(byName))
	for _, r := range byName {
		sort.Strings(r.Artifacts)
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].Name < runs[j].Name
	})
	return runs, nil
}
