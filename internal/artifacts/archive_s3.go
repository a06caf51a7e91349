package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archive uploads an execution directory to S3 before it is pruned
// from local disk, one object per file under a <prefix>/<execution_id>/
// key, mirroring the layout on disk so a restored tree needs no
// reshaping.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archive wraps an existing S3 client.
func NewS3Archive(client *s3.Client, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3Archive) Archive(ctx context.Context, executionID string, dir string) error {
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

		key := fmt.Sprintf("%s/%s/%s", a.prefix, executionID, filepath.ToSlash(rel))
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		if err != nil {
			return fmt.Errorf("artifacts: uploading %s to s3://%s/%s: %w", path, a.bucket, key, err)
		}
		return nil
	})
}
