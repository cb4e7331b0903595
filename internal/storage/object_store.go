package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ObjectStore holds dataset archives and trained weights. Keys are slash
// separated and relative to the bucket.
type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	UploadFile(ctx context.Context, bucket, key, src string) error

	DownloadObject(ctx context.Context, bucket, key, filename string) error
}

// ParseS3URI splits s3://bucket/key into its bucket and key.
func ParseS3URI(uri string) (string, string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 uri '%s': %w", uri, err)
	}
	if parsed.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid s3 uri '%s': scheme must be s3", uri)
	}

	bucket := parsed.Host
	key := strings.TrimPrefix(parsed.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 uri '%s': bucket and key are required", uri)
	}

	return bucket, key, nil
}

func s3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
