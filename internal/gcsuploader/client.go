// Package gcsuploader moves table files to and from Google Cloud Storage.
// Credentials come from Application Default Credentials.
package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/gl-mapper/internal/gcs"
)

const defaultTimeout = 2 * time.Minute

// Client is a gcs.ObjectStore backed by Cloud Storage. A storage client is
// opened per call, which suits the few objects a run touches.
type Client struct {
	// Timeout bounds each Get or Put. Zero means two minutes.
	Timeout time.Duration
}

// NewClient returns a Client with the default timeout.
func NewClient() *Client {
	return &Client{Timeout: defaultTimeout}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// Get downloads the object named by uri.
func (c *Client) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: create storage client: %w", err)
	}
	defer sc.Close()

	rc, err := sc.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: open %s: %w", uri, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Get: read %s: %w", uri, err)
	}
	return data, nil
}

// Put writes data to the object named by uri, replacing it if present.
func (c *Client) Put(ctx context.Context, uri string, data []byte, contentType string) error {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	sc, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("Put: create storage client: %w", err)
	}
	defer sc.Close()

	w := sc.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		// Cancel before Close so the partial object is discarded.
		cancel()
		_ = w.Close()
		return fmt.Errorf("Put: write %s: %w", uri, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Put: finalize %s: %w", uri, err)
	}
	return nil
}

var _ gcs.ObjectStore = (*Client)(nil)
