package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LocalObjectStore maps buckets to directories under baseDir. It backs the
// single machine deployment and tests.
type LocalObjectStore struct {
	baseDir string
}

var _ ObjectStore = (*LocalObjectStore)(nil)

func NewLocalObjectStore(dir string) (*LocalObjectStore, error) {
	baseDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	return &LocalObjectStore{baseDir: baseDir}, nil
}

func (s *LocalObjectStore) objectPath(bucket, key string) (string, error) {
	bucketDir := filepath.Join(s.baseDir, bucket)
	path := filepath.Join(bucketDir, filepath.FromSlash(key))
	if !strings.HasPrefix(path, bucketDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key %q for bucket %s", key, bucket)
	}
	return path, nil
}

func (s *LocalObjectStore) CreateBucket(ctx context.Context, bucket string) error {
	if err := os.MkdirAll(filepath.Join(s.baseDir, bucket), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *LocalObjectStore) UploadFile(ctx context.Context, bucket, key, src string) error {
	dst, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	n, err := copyFile(src, dst)
	if err != nil {
		return fmt.Errorf("failed to store %s as %s/%s: %w", src, bucket, key, err)
	}

	slog.Info("stored file", "src", src, "bucket", bucket, "key", key, "bytes", n)
	return nil
}

func (s *LocalObjectStore) DownloadObject(ctx context.Context, bucket, key, filename string) error {
	src, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if _, err := copyFile(src, filename); err != nil {
		return fmt.Errorf("failed to fetch %s/%s: %w", bucket, key, err)
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return 0, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return 0, err
	}
	return n, out.Close()
}
