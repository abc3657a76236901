package filestore

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/logger"
)

// PublishResult lists what Publish uploaded.
type PublishResult struct {
	Bucket    string
	Objects   []ObjectInfo
	ReportKey string
	ReportURL string
}

// ContentType picks the MIME type for a bundle file by extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// ObjectKey returns the key a bundle file is stored under:
// <prefix>/<bundle dir name>/<file>.
func ObjectKey(prefix, bundleDir, name string) string {
	return path.Join(strings.Trim(prefix, "/"), filepath.Base(bundleDir), name)
}

// Publish uploads every regular file of bundleDir to cfg.Bucket and, when
// a markdown report is among them, returns a presigned link to it. Files are sent
// in name order. The first failed upload stops the publish.
func Publish(ctx context.Context, store Store, cfg *Config, bundleDir string, log *logger.Logger) (*PublishResult, error) {
	if log == nil {
		log = logger.Nop()
	}

	entries, err := os.ReadDir(bundleDir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindIO, "failed to read bundle directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if err := store.EnsureBucket(ctx, cfg.Bucket); err != nil {
		return nil, err
	}

	res := &PublishResult{Bucket: cfg.Bucket}
	for _, name := range names {
		key := ObjectKey(cfg.Prefix, bundleDir, name)
		info, err := putFile(ctx, store, cfg.Bucket, key, filepath.Join(bundleDir, name))
		if err != nil {
			return res, err
		}
		log.With().Str("key", key).Int("bytes", int(info.Size)).Logger().Debug("uploaded")
		res.Objects = append(res.Objects, *info)
		if res.ReportKey == "" && strings.EqualFold(filepath.Ext(name), ".md") {
			res.ReportKey = key
		}
	}

	if res.ReportKey != "" && cfg.LinkTTL > 0 {
		url, err := store.PresignGetURL(ctx, cfg.Bucket, res.ReportKey, cfg.LinkTTL)
		if err != nil {
			// The upload itself succeeded; a missing link is not fatal.
			log.WarnWith("could not presign report link", err, logger.Fields{"key": res.ReportKey})
		} else {
			res.ReportURL = url
		}
	}

	log.Infof("published %d files to %s/%s", len(res.Objects), cfg.Bucket, ObjectKey(cfg.Prefix, bundleDir, ""))
	return res, nil
}

func putFile(ctx context.Context, store Store, bucket, key, file string) (*ObjectInfo, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrKindIO, err, "failed to open %s", file)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errs.Wrapf(errs.ErrKindIO, err, "failed to stat %s", file)
	}

	return store.PutObject(ctx, bucket, key, f, st.Size(), ContentType(file))
}
