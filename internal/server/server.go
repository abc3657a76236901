// Package server serves past report bundles over HTTP: listing runs,
// downloading their report and CSV exports, and diffing two runs.
package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/logger"
	"github.com/koustreak/contentstats/internal/report"
	"github.com/pmezard/go-difflib/difflib"
)

// Server exposes the bundles under one output root. It only reads.
type Server struct {
	fsys   fs.FS
	log    *logger.Logger
	router chi.Router
}

// New returns a Server reading bundles from root.
func New(root string, log *logger.Logger) *Server {
	return NewFS(os.DirFS(root), log)
}

// NewFS is New over an arbitrary file system.
func NewFS(fsys fs.FS, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{fsys: fsys, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{run}", func(r chi.Router) {
			r.Get("/", s.handleRun)
			r.Get("/report", s.handleReport)
			r.Get("/artifacts/{file}", s.handleArtifact)
			r.Get("/diff/{other}", s.handleDiff)
		})
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.HTTPEvent().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	runs, err := listRuns(s.fsys)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.findRun(chi.URLParam(r, "run"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "run")
	if _, _, ok := parseRunName(name); !ok {
		s.fail(w, errs.New(errs.ErrKindInvalidInput, "invalid run name"))
		return
	}
	s.serveFile(w, path.Join(name, report.ReportFile), "text/markdown; charset=utf-8")
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name, file := chi.URLParam(r, "run"), chi.URLParam(r, "file")
	if _, _, ok := parseRunName(name); !ok || !fileName.MatchString(file) {
		s.fail(w, errs.New(errs.ErrKindInvalidInput, "invalid run or artifact name"))
		return
	}
	s.serveFile(w, path.Join(name, file), "text/csv; charset=utf-8")
}

// handleDiff returns a unified diff between the reports of two runs, or
// between one CSV export of each when ?artifact=<file> is given.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	a, b := chi.URLParam(r, "run"), chi.URLParam(r, "other")
	if _, _, ok := parseRunName(a); !ok {
		s.fail(w, errs.New(errs.ErrKindInvalidInput, "invalid run name"))
		return
	}
	if _, _, ok := parseRunName(b); !ok {
		s.fail(w, errs.New(errs.ErrKindInvalidInput, "invalid run name"))
		return
	}

	file := report.ReportFile
	if q := r.URL.Query().Get("artifact"); q != "" {
		if !fileName.MatchString(q) {
			s.fail(w, errs.New(errs.ErrKindInvalidInput, "invalid artifact name"))
			return
		}
		file = q
	}

	text, err := s.diff(path.Join(a, file), path.Join(b, file))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) diff(from, to string) (string, error) {
	a, err := s.read(from)
	if err != nil {
		return "", err
	}
	b, err := s.read(to)
	if err != nil {
		return "", err
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindUnknown, "failed to diff", err)
	}
	return text, nil
}

func (s *Server) findRun(name string) (*Run, error) {
	if _, _, ok := parseRunName(name); !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, "invalid run name")
	}
	runs, err := listRuns(s.fsys)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].Name == name {
			return &runs[i], nil
		}
	}
	return nil, errs.New(errs.ErrKindNotFound, "run not found")
}

func (s *Server) read(name string) ([]byte, error) {
	b, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "file not found", err)
		}
		return nil, errs.Wrap(errs.ErrKindIO, "failed to read file", err)
	}
	return b, nil
}

func (s *Server) serveFile(w http.ResponseWriter, name, contentType string) {
	b, err := s.read(name)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+strings.ReplaceAll(path.Base(name), `"`, "")+`"`)
	_, _ = w.Write(b)
}

// fail maps an error kind to a status and writes a JSON error body.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	case errs.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errs.IsPermissionDenied(err):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.log.ErrorWith("request failed", err, nil)
	}

	writeJSON(w, status, map[string]string{"error": errs.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
