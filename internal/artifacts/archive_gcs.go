package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// GCSArchive is the Google Cloud Storage counterpart to S3Archive,
// selected by configuration when the operator's cold-archive tier is
// GCS rather than S3.
type GCSArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchive wraps an existing GCS client.
func NewGCSArchive(client *storage.Client, bucket, prefix string) *GCSArchive {
	return &GCSArchive{client: client, bucket: bucket, prefix: prefix}
}

func (a *GCSArchive) Archive(ctx context.Context, executionID string, dir string) error {
	bucket := a.client.Bucket(a.bucket)
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("artifacts: computing relative path for %s: %w", path, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("artifacts: opening %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()

		object := fmt.Sprintf("%s/%s/%s", a.prefix, executionID, filepath.ToSlash(rel))
		w := bucket.Object(object).NewWriter(ctx)
		if _, err := io.Copy(w, f); err != nil {
			_ = w.Close()
			return fmt.Errorf("artifacts: uploading %s to gs://%s/%s: %w", path, a.bucket, object, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("artifacts: closing gcs object %s: %w", object, err)
		}
		return nil
	})
}
