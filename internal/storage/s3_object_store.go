package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3ObjectStore keeps dataset archives and trained weights in S3 or an S3
// compatible service such as MinIO.
type S3ObjectStore struct {
	client     *s3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
}

var _ ObjectStore = (*S3ObjectStore)(nil)

func NewS3ObjectStore(cfg S3ClientConfig) (*S3ObjectStore, error) {
	client, err := initializeS3Client(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	return &S3ObjectStore{
		client:     client,
		downloader: manager.NewDownloader(client),
		uploader:   manager.NewUploader(client),
	}, nil
}

// CreateBucket succeeds if the bucket already exists.
func (s *S3ObjectStore) CreateBucket(ctx context.Context, bucket string) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})

	var exists *types.BucketAlreadyExists
	var owned *types.BucketAlreadyOwnedByYou
	switch {
	case err == nil:
		slog.Info("created bucket", "bucket", bucket)
	case errors.As(err, &exists), errors.As(err, &owned):
		slog.Debug("bucket already exists", "bucket", bucket)
	default:
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	return nil
}

// UploadFile streams src to bucket/key. The uploader switches to multipart
// for large checkpoints.
func (s *S3ObjectStore) UploadFile(ctx context.Context, bucket, key, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
	}); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", src, s3URI(bucket, key), err)
	}

	slog.Info("uploaded file", "src", src, "uri", s3URI(bucket, key), "bytes", info.Size())
	return nil
}

// DownloadObject writes bucket/key to filename. The object lands in a
// temporary file first so a failed download never leaves a partial archive.
func (s *S3ObjectStore) DownloadObject(ctx context.Context, bucket, key, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", filename, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	n, err := s.downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", s3URI(bucket, key), err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to move download into %s: %w", filename, err)
	}

	slog.Info("downloaded object", "uri", s3URI(bucket, key), "dst", filename, "bytes", n)
	return nil
}

// CheckAccess verifies that the bucket exists and can be listed with the
// configured credentials.
func (s *S3ObjectStore) CheckAccess(ctx context.Context, bucket string) error {
	return checkBucketAccess(ctx, s.client, bucket)
}
