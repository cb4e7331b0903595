package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/internal/core/utils"
	"sign-lang-pipeline/internal/storage"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/schollz/progressbar/v3"
)

const (
	DataZipFileName = "data.zip"
	downloadTimeout = 30 * time.Minute
)

type DataIngestion struct {
	config       types.DataIngestionConfig
	store        storage.ObjectStore
	client       *resty.Client
	showProgress bool
}

// NewDataIngestion fetches the dataset archive named by config.DataDownloadURL,
// which may be an http(s) url, an s3://bucket/key uri resolved through store,
// or a local path.
func NewDataIngestion(config types.DataIngestionConfig, store storage.ObjectStore, showProgress bool) *DataIngestion {
	return &DataIngestion{
		config:       config,
		store:        store,
		client:       resty.New().SetTimeout(downloadTimeout).SetRetryCount(0),
		showProgress: showProgress,
	}
}

func (d *DataIngestion) InitiateDataIngestion(ctx context.Context) (types.DataIngestionArtifact, error) {
	slog.Info("starting data ingestion", "source", d.config.DataDownloadURL)

	zipPath, err := d.DownloadData(ctx)
	if err != nil {
		return types.DataIngestionArtifact{}, err
	}

	if err := d.ExtractZipFile(zipPath); err != nil {
		return types.DataIngestionArtifact{}, err
	}

	artifact := types.DataIngestionArtifact{
		DataZipFilePath:  zipPath,
		FeatureStorePath: d.config.FeatureStoreDir,
	}
	slog.Info("data ingestion completed", "data_zip_file_path", artifact.DataZipFilePath, "feature_store_path", artifact.FeatureStorePath)

	return artifact, nil
}

func (d *DataIngestion) DownloadData(ctx context.Context) (string, error) {
	source := d.config.DataDownloadURL
	if source == "" {
		return "", &StageError{Stage: StageDataIngestion, Op: "download", Err: fmt.Errorf("%w: no data source configured", ErrDownloadFailed)}
	}

	if err := os.MkdirAll(d.config.DataIngestionDir, os.ModePerm); err != nil {
		return "", &StageError{Stage: StageDataIngestion, Op: "create ingestion dir", Err: err}
	}

	zipPath := filepath.Join(d.config.DataIngestionDir, DataZipFileName)

	var err error
	switch {
	case strings.HasPrefix(source, "s3://"):
		err = d.downloadFromStore(ctx, source, zipPath)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		err = d.downloadFromURL(ctx, source, zipPath)
	default:
		err = utils.CopyFile(strings.TrimPrefix(source, "file://"), zipPath)
	}
	if err != nil {
		return "", &StageError{Stage: StageDataIngestion, Op: "download", Err: fmt.Errorf("%w: %w", ErrDownloadFailed, err)}
	}

	slog.Info("downloaded dataset archive", "source", source, "path", zipPath)
	return zipPath, nil
}

func (d *DataIngestion) ExtractZipFile(zipPath string) error {
	if err := os.RemoveAll(d.config.FeatureStoreDir); err != nil {
		return &StageError{Stage: StageDataIngestion, Op: "clear feature store", Err: err}
	}

	if err := utils.ExtractZip(zipPath, d.config.FeatureStoreDir, d.config.KeepRoots...); err != nil {
		return &StageError{Stage: StageDataIngestion, Op: "extract archive", Err: err}
	}

	return nil
}

func (d *DataIngestion) downloadFromStore(ctx context.Context, uri, dst string) error {
	if d.store == nil {
		return fmt.Errorf("no object store configured for %s", uri)
	}

	bucket, key, err := storage.ParseS3URI(uri)
	if err != nil {
		return err
	}

	return d.store.DownloadObject(ctx, bucket, key, dst)
}

func (d *DataIngestion) downloadFromURL(ctx context.Context, url, dst string) error {
	res, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("error requesting %s: %w", url, err)
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		return fmt.Errorf("error requesting %s: status %d", url, res.StatusCode())
	}

	file, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", dst, err)
	}
	defer file.Close()

	var out io.Writer = file
	if d.showProgress {
		bar := progressbar.DefaultBytes(res.RawResponse.ContentLength, "downloading dataset")
		out = io.MultiWriter(file, bar)
	}

	if _, err := io.Copy(out, body); err != nil {
		return fmt.Errorf("error writing %s: %w", dst, err)
	}

	return nil
}
