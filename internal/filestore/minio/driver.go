// Package minio publishes report bundles to MinIO or any S3-compatible
// endpoint through minio-go.
package minio

import (
	"context"
	"io"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/filestore"
)

// Driver is a filestore.Store. Safe for concurrent use.
type Driver struct {
	client *miniogo.Client
	bucket string
	region string
}

// New validates cfg, builds the client and pings the endpoint.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket, region: cfg.Region}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping checks the configured bucket rather than listing all buckets, since
// publishing credentials are often scoped to one bucket.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.BucketExists(ctx, d.bucket); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the client keeps no session.
func (d *Driver) Close() error { return nil }

func (d *Driver) EnsureBucket(ctx context.Context, bucket string) error {
	ok, err := d.client.BucketExists(ctx, bucket)
	if err != nil {
		return mapError(err, "failed to check bucket")
	}
	if ok {
		return nil
	}
	err = d.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{Region: d.region})
	if err == nil || miniogo.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
		return nil
	}
	return mapError(err, "failed to create bucket "+bucket)
}

func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	info, err := d.client.PutObject(ctx, bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType:    contentType,
		SendContentMd5: true,
	})
	if err != nil {
		return nil, mapError(err, "failed to upload "+key)
	}
	return &filestore.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  contentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to presign "+key)
	}
	return u.String(), nil
}
