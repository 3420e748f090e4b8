// Package gcs defines the object storage contract used by table loaders.
package gcs

import "context"

// ObjectStore reads and writes whole objects addressed by gs://bucket/object URIs.
type ObjectStore interface {
	Get(ctx context.Context, uri string) ([]byte, error)
	Put(ctx context.Context, uri string, data []byte, contentType string) error
}
