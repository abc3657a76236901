package filestore

import "time"

// ObjectInfo describes one uploaded bundle file, for example
// "drupal/content-analysis-prod-20260101-120000/recent-nodes.csv".
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time // zero when the backend does not report it
}
