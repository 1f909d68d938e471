// Package archive stores full report payloads in Google Cloud Storage,
// keeping only a short preview inline in BigQuery.
package archive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// GCSArchive writes report payloads to one bucket. It assumes
// Application Default Credentials are configured.
type GCSArchive struct {
	client *storage.Client
	bucket string
}

func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: create storage client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket}, nil
}

func (a *GCSArchive) Close() error {
	return a.client.Close()
}

// Archive uploads data under objectName and returns the gs:// URI.
func (a *GCSArchive) Archive(ctx context.Context, objectName string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	obj := a.client.Bucket(a.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("archive: write object %q: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("archive: finalize upload: %w", err)
	}

	return "gs://" + a.bucket + "/" + objectName, nil
}

// Fetch downloads a previously archived payload from its gs:// URI.
func (a *GCSArchive) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: reading bytes: %w", err)
	}
	return data, nil
}

// splitURI parses "gs://bucket/path/to/object.json".
func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("archive: invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("archive: invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
