package core

import (
	"context"
	"os"
	"path/filepath"
	"sign-lang-pipeline/internal/storage"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineConfig(t *testing.T, files map[string]string) PipelineConfig {
	archive := filepath.Join(t.TempDir(), "signs.zip")
	writeZip(t, archive, files)

	workDir := t.TempDir()
	return PipelineConfig{
		ArtifactsDir:    filepath.Join(workDir, "artifacts"),
		WorkDir:         workDir,
		DataDownloadURL: archive,
		WeightName:      "yolo11n.pt",
		Epochs:          1,
		BatchSize:       4,
		DetectorType:    YoloCli,
	}
}

func TestTrainingPipeline(t *testing.T) {
	config := pipelineConfig(t, datasetFiles())
	config.ModelBucket = "models"
	config.ModelKeyPrefix = "run-1"

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	detector := &fakeDetector{checkpoint: "trained"}
	loaders := map[DetectorType]DetectorLoader{YoloCli: fakeLoader(detector)}

	var stages []Stage
	observer := func(stage Stage) { stages = append(stages, stage) }

	artifacts, err := NewTrainingPipeline(config, store, loaders, observer).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageDataIngestion, StageDataValidation, StageModelTrainer, StageModelPusher}, stages)
	assert.True(t, artifacts.DataValidation.ValidationStatus)
	assert.Equal(t, filepath.Join(config.ArtifactsDir, "model_trainer", "best.pt"), artifacts.ModelTrainer.TrainedModelFilePath)
	assert.Equal(t, "run-1/best.pt", artifacts.PushedModelKey)

	status, err := os.ReadFile(filepath.Join(config.ArtifactsDir, "data_validation", "status.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Validation status: True", string(status))

	assert.FileExists(t, filepath.Join(config.WorkDir, "data.zip"))
	assert.FileExists(t, filepath.Join(config.WorkDir, DatasetDescriptorFile))

	pushed := filepath.Join(t.TempDir(), "best.pt")
	require.NoError(t, store.DownloadObject(context.Background(), "models", "run-1/best.pt", pushed))
	data, err := os.ReadFile(pushed)
	require.NoError(t, err)
	assert.Equal(t, "trained", string(data))
}

func TestTrainingPipelineValidationFailure(t *testing.T) {
	files := datasetFiles()
	delete(files, "signs/test/images/c.jpg")

	config := pipelineConfig(t, files)
	detector := &fakeDetector{checkpoint: "trained"}
	loaders := map[DetectorType]DetectorLoader{YoloCli: fakeLoader(detector)}

	var stages []Stage
	observer := func(stage Stage) { stages = append(stages, stage) }

	artifacts, err := NewTrainingPipeline(config, nil, loaders, observer).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	stage, ok := FailedStage(err)
	assert.True(t, ok)
	assert.Equal(t, StageDataValidation, stage)

	assert.Equal(t, []Stage{StageDataIngestion, StageDataValidation}, stages)
	assert.False(t, artifacts.DataValidation.ValidationStatus)
	assert.Equal(t, []string{"test"}, artifacts.DataValidation.MissingFiles)
	assert.Empty(t, detector.calls)
	assert.NoFileExists(t, filepath.Join(config.WorkDir, "data.zip"))
}

func TestTrainingPipelineCustomRequiredFiles(t *testing.T) {
	files := datasetFiles()
	delete(files, "signs/test/images/c.jpg")

	config := pipelineConfig(t, files)
	config.RequiredFiles = []string{"train", "valid", "data.yaml"}

	detector := &fakeDetector{checkpoint: "trained"}
	loaders := map[DetectorType]DetectorLoader{YoloCli: fakeLoader(detector)}

	artifacts, err := NewTrainingPipeline(config, nil, loaders, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, artifacts.PushedModelKey)
	assert.Len(t, detector.calls, 1)
}

func TestTrainingPipelineUnknownDetector(t *testing.T) {
	config := pipelineConfig(t, datasetFiles())
	config.DetectorType = YoloPlugin

	loaders := map[DetectorType]DetectorLoader{YoloCli: fakeLoader(&fakeDetector{})}

	_, err := NewTrainingPipeline(config, nil, loaders, nil).Run(context.Background())
	require.Error(t, err)
	assert.NoDirExists(t, config.ArtifactsDir)
}

func TestRequiredDirectoryAsArchiveRoot(t *testing.T) {
	config := pipelineConfig(t, map[string]string{
		"images/a.jpg": "a",
		"images/b.jpg": "b",
	})
	config.RequiredFiles = []string{"images"}

	ingestion, err := NewDataIngestion(config.IngestionConfig(), nil, false).InitiateDataIngestion(context.Background())
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(ingestion.FeatureStorePath, "images"))

	validation, err := NewDataValidation(ingestion, config.ValidationConfig(), config.WorkDir).InitiateDataValidation(context.Background())
	require.NoError(t, err)
	assert.True(t, validation.ValidationStatus)
	assert.Empty(t, validation.MissingFiles)
}
