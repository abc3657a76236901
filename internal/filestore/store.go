// Package filestore publishes finished report bundles to object storage.
// Publish works against the Store interface; the minio subpackage is the
// only backend.
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is an object storage backend that can receive a bundle.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// EnsureBucket creates bucket unless it already exists.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject uploads exactly size bytes from r.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// PresignGetURL returns a link that downloads the object without
	// credentials until ttl expires.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
