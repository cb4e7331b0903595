package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/internal/storage"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingestionConfig(t *testing.T, source string) types.DataIngestionConfig {
	dir := filepath.Join(t.TempDir(), "data_ingestion")
	return types.DataIngestionConfig{
		DataIngestionDir: dir,
		FeatureStoreDir:  filepath.Join(dir, "feature_store"),
		DataDownloadURL:  source,
	}
}

func assertFeatureStore(t *testing.T, artifact types.DataIngestionArtifact) {
	entries, err := os.ReadDir(artifact.FeatureStorePath)
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"train", "valid", "test", "data.yaml"}, names)
	assert.FileExists(t, artifact.DataZipFilePath)
}

func TestDataIngestionLocalFile(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "signs.zip")
	writeZip(t, archive, datasetFiles())

	config := ingestionConfig(t, "file://"+archive)
	artifact, err := NewDataIngestion(config, nil, false).InitiateDataIngestion(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(config.DataIngestionDir, "data.zip"), artifact.DataZipFilePath)
	assert.Equal(t, config.FeatureStoreDir, artifact.FeatureStorePath)
	assertFeatureStore(t, artifact)
}

func TestDataIngestionHTTP(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "signs.zip")
	writeZip(t, archive, datasetFiles())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets/signs.zip" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, archive)
	}))
	defer server.Close()

	t.Run("Download", func(t *testing.T) {
		artifact, err := NewDataIngestion(ingestionConfig(t, server.URL+"/datasets/signs.zip"), nil, false).InitiateDataIngestion(context.Background())
		require.NoError(t, err)
		assertFeatureStore(t, artifact)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := NewDataIngestion(ingestionConfig(t, server.URL+"/missing.zip"), nil, false).InitiateDataIngestion(context.Background())
		assert.ErrorIs(t, err, ErrDownloadFailed)

		stage, _ := FailedStage(err)
		assert.Equal(t, StageDataIngestion, stage)
	})
}

func TestDataIngestionObjectStore(t *testing.T) {
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "signs.zip")
	writeZip(t, archive, datasetFiles())
	require.NoError(t, store.UploadFile(context.Background(), "datasets", "sign/signs.zip", archive))

	t.Run("Download", func(t *testing.T) {
		artifact, err := NewDataIngestion(ingestionConfig(t, "s3://datasets/sign/signs.zip"), store, false).InitiateDataIngestion(context.Background())
		require.NoError(t, err)
		assertFeatureStore(t, artifact)
	})

	t.Run("NoStore", func(t *testing.T) {
		_, err := NewDataIngestion(ingestionConfig(t, "s3://datasets/sign/signs.zip"), nil, false).InitiateDataIngestion(context.Background())
		assert.ErrorIs(t, err, ErrDownloadFailed)
	})
}

func TestDataIngestionFailures(t *testing.T) {
	t.Run("NoSource", func(t *testing.T) {
		_, err := NewDataIngestion(ingestionConfig(t, ""), nil, false).InitiateDataIngestion(context.Background())
		assert.ErrorIs(t, err, ErrDownloadFailed)
	})

	t.Run("NotAnArchive", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.zip")
		require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0644))

		_, err := NewDataIngestion(ingestionConfig(t, path), nil, false).InitiateDataIngestion(context.Background())
		require.Error(t, err)

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageDataIngestion, stageErr.Stage)
		assert.Equal(t, "extract archive", stageErr.Op)
	})

	t.Run("ReplacesStaleFeatureStore", func(t *testing.T) {
		archive := filepath.Join(t.TempDir(), "signs.zip")
		writeZip(t, archive, datasetFiles())

		config := ingestionConfig(t, archive)
		require.NoError(t, os.MkdirAll(filepath.Join(config.FeatureStoreDir, "stale"), os.ModePerm))

		artifact, err := NewDataIngestion(config, nil, false).InitiateDataIngestion(context.Background())
		require.NoError(t, err)
		assertFeatureStore(t, artifact)
	})
}
