package filestore

import (
	"time"

	"github.com/koustreak/contentstats/internal/errs"
)

// Provider names an object storage backend.
type Provider string

const ProviderMinIO Provider = "minio"

// MaxLinkTTL is the longest validity S3 accepts for a presigned URL.
const MaxLinkTTL = 7 * 24 * time.Hour

// Config says where bundles are published.
type Config struct {
	Provider  Provider
	Endpoint  string // host:port, e.g. "localhost:9000"
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string // empty for MinIO

	// Bucket receives every bundle and is created on first use.
	Bucket string
	// Prefix goes in front of every key: <prefix>/<bundle>/<file>.
	Prefix string
	// LinkTTL is how long the presigned report link stays valid. Zero
	// skips the link.
	LinkTTL time.Duration
}

// DefaultConfig returns a MinIO config with a one-day report link.
func DefaultConfig(endpoint, accessKey, secretKey, bucket string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    bucket,
		LinkTTL:   24 * time.Hour,
	}
}

// Validate reports the first missing or out-of-range setting.
func (c *Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return errs.New(errs.ErrKindInvalidInput, "publish endpoint is required")
	case c.Bucket == "":
		return errs.New(errs.ErrKindInvalidInput, "publish bucket is required")
	case c.Provider != ProviderMinIO:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported storage provider %q", c.Provider)
	case c.LinkTTL < 0 || c.LinkTTL > MaxLinkTTL:
		return errs.Newf(errs.ErrKindInvalidInput, "publish link TTL must be between 0 and %s", MaxLinkTTL)
	}
	return nil
}
