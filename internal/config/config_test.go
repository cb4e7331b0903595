package config_test

import (
	"path/filepath"
	"sign-lang-pipeline/internal/config"
	"sign-lang-pipeline/internal/core"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ROOT", "/data")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"train", "valid", "test", "data.yaml"}, cfg.RequiredFiles)
	assert.Equal(t, "yolo11n.pt", cfg.WeightName)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, "yolo_cli", cfg.DetectorType)
	assert.False(t, cfg.S3Config.Enabled())
	assert.Equal(t, filepath.Join("/data", "pipeline.db"), cfg.DatabaseURLOrDefault())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("REQUIRED_FILES", "images,labels")
	t.Setenv("EPOCHS", "30")
	t.Setenv("BATCH_SIZE", "-1")
	t.Setenv("DETECTOR_TYPE", "yolo_plugin")
	t.Setenv("MODEL_BUCKET_NAME", "models")
	t.Setenv("S3_ENDPOINT_URL", "http://localhost:9000")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"images", "labels"}, cfg.RequiredFiles)
	assert.True(t, cfg.S3Config.Enabled())

	pipelineCfg, err := cfg.PipelineConfig("/work/run")
	require.NoError(t, err)
	assert.Equal(t, core.YoloPlugin, pipelineCfg.DetectorType)
	assert.Equal(t, 30, pipelineCfg.Epochs)
	assert.Equal(t, -1, pipelineCfg.BatchSize)
	assert.Equal(t, "models", pipelineCfg.ModelBucket)
	assert.Equal(t, filepath.Join("/work/run", "artifacts"), pipelineCfg.ArtifactsDir)
	assert.Equal(t, "/work/run", pipelineCfg.WorkDir)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Run("DetectorType", func(t *testing.T) {
		t.Setenv("DETECTOR_TYPE", "onnx")
		_, err := config.LoadConfig()
		assert.Error(t, err)
	})

	t.Run("Epochs", func(t *testing.T) {
		t.Setenv("EPOCHS", "0")
		_, err := config.LoadConfig()
		assert.Error(t, err)
	})

	t.Run("EpochsNotANumber", func(t *testing.T) {
		t.Setenv("EPOCHS", "many")
		_, err := config.LoadConfig()
		assert.Error(t, err)
	})
}
