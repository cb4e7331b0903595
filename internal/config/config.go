package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sign-lang-pipeline/internal/core"

	"github.com/caarlos0/env/v11"
)

// S3Config is left empty to use the local object store instead.
type S3Config struct {
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
}

func (c S3Config) Enabled() bool {
	return c.S3EndpointURL != "" || c.S3AccessKeyID != ""
}

type DetectorConfig struct {
	DetectorType      string `env:"DETECTOR_TYPE" envDefault:"yolo_cli"`
	YoloExecutable    string `env:"YOLO_EXECUTABLE" envDefault:"yolo"`
	TrainerPluginPath string `env:"TRAINER_PLUGIN_PATH"`
}

func (c DetectorConfig) Loaders() map[core.DetectorType]core.DetectorLoader {
	return core.NewDetectorLoaders(c.YoloExecutable, c.TrainerPluginPath)
}

// TrainingConfig holds the defaults a pipeline run falls back to.
type TrainingConfig struct {
	DataDownloadURL string   `env:"DATA_DOWNLOAD_URL"`
	RequiredFiles   []string `env:"REQUIRED_FILES" envSeparator:"," envDefault:"train,valid,test,data.yaml"`
	WeightName      string   `env:"WEIGHT_NAME" envDefault:"yolo11n.pt"`
	Epochs          int      `env:"EPOCHS" envDefault:"1"`
	BatchSize       int      `env:"BATCH_SIZE" envDefault:"16"`
}

type Config struct {
	Root        string `env:"ROOT" envDefault:"./pipeline-data"`
	DatabaseURL string `env:"DATABASE_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	ModelBucketName string `env:"MODEL_BUCKET_NAME"`
	APIPort         string `env:"API_PORT" envDefault:"8001"`

	S3Config
	DetectorConfig
	TrainingConfig
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := core.ParseDetectorType(c.DetectorType); err != nil {
		return err
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("EPOCHS must be positive, got %d", c.Epochs)
	}
	if c.BatchSize == 0 || c.BatchSize < -1 {
		return fmt.Errorf("BATCH_SIZE must be positive or -1, got %d", c.BatchSize)
	}
	if len(c.RequiredFiles) == 0 {
		return fmt.Errorf("REQUIRED_FILES must name at least one entry")
	}
	return nil
}

func (c Config) DatabaseURLOrDefault() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.Root, "pipeline.db")
}

func (c Config) StorageDir() string {
	return filepath.Join(c.Root, "storage")
}

func (c Config) RunsDir() string {
	return filepath.Join(c.Root, "runs")
}

// PipelineConfig builds the configuration for a single run of every stage
// rooted at dir.
func (c Config) PipelineConfig(dir string) (core.PipelineConfig, error) {
	detectorType, err := core.ParseDetectorType(c.DetectorType)
	if err != nil {
		return core.PipelineConfig{}, err
	}

	return core.PipelineConfig{
		ArtifactsDir:    filepath.Join(dir, "artifacts"),
		WorkDir:         dir,
		DataDownloadURL: c.DataDownloadURL,
		RequiredFiles:   c.RequiredFiles,
		WeightName:      c.WeightName,
		Epochs:          c.Epochs,
		BatchSize:       c.BatchSize,
		DetectorType:    detectorType,
		ModelBucket:     c.ModelBucketName,
	}, nil
}
