package core

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/internal/storage"
)

const (
	DataIngestionDirName  = "data_ingestion"
	FeatureStoreDirName   = "feature_store"
	DataValidationDirName = "data_validation"
	ValidStatusFileName   = "status.txt"
	ModelTrainerDirName   = "model_trainer"
)

var DefaultRequiredFiles = []string{"train", "valid", "test", "data.yaml"}

type PipelineConfig struct {
	// ArtifactsDir receives every stage's output; WorkDir is where the dataset
	// archive is copied and training runs. Both must be private to a run.
	ArtifactsDir string
	WorkDir      string

	DataDownloadURL string
	RequiredFiles   []string

	WeightName   string
	Epochs       int
	BatchSize    int
	DetectorType DetectorType

	// ModelBucket, if set, receives the trained weights under ModelKeyPrefix.
	ModelBucket    string
	ModelKeyPrefix string

	ShowProgress bool
}

func (c PipelineConfig) IngestionConfig() types.DataIngestionConfig {
	ingestionDir := filepath.Join(c.ArtifactsDir, DataIngestionDirName)
	return types.DataIngestionConfig{
		DataIngestionDir: ingestionDir,
		FeatureStoreDir:  filepath.Join(ingestionDir, FeatureStoreDirName),
		DataDownloadURL:  c.DataDownloadURL,
		KeepRoots:        c.requiredFiles(),
	}
}

func (c PipelineConfig) ValidationConfig() types.DataValidationConfig {
	validationDir := filepath.Join(c.ArtifactsDir, DataValidationDirName)

	return types.DataValidationConfig{
		DataValidationDir:   validationDir,
		ValidStatusFilePath: filepath.Join(validationDir, ValidStatusFileName),
		RequiredFileList:    c.requiredFiles(),
	}
}

func (c PipelineConfig) requiredFiles() []string {
	if len(c.RequiredFiles) == 0 {
		return DefaultRequiredFiles
	}
	return c.RequiredFiles
}

func (c PipelineConfig) TrainerConfig() types.ModelTrainerConfig {
	return types.ModelTrainerConfig{
		ModelTrainerDir: filepath.Join(c.ArtifactsDir, ModelTrainerDirName),
		WeightName:      c.WeightName,
		NoEpochs:        c.Epochs,
		BatchSize:       c.BatchSize,
	}
}

type PipelineArtifacts struct {
	DataIngestion  types.DataIngestionArtifact  `json:"data_ingestion"`
	DataValidation types.DataValidationArtifact `json:"data_validation"`
	ModelTrainer   types.ModelTrainerArtifact   `json:"model_trainer"`
	PushedModelKey string                       `json:"pushed_model_key,omitempty"`
}

// StageObserver is notified before each stage starts.
type StageObserver func(stage Stage)

type TrainingPipeline struct {
	config   PipelineConfig
	store    storage.ObjectStore
	loaders  map[DetectorType]DetectorLoader
	observer StageObserver
}

func NewTrainingPipeline(config PipelineConfig, store storage.ObjectStore, loaders map[DetectorType]DetectorLoader, observer StageObserver) *TrainingPipeline {
	if observer == nil {
		observer = func(Stage) {}
	}
	return &TrainingPipeline{
		config:   config,
		store:    store,
		loaders:  loaders,
		observer: observer,
	}
}

// Run executes ingestion, validation and training in order. Training is
// skipped with ErrValidationFailed when the feature store is incomplete.
func (p *TrainingPipeline) Run(ctx context.Context) (PipelineArtifacts, error) {
	var artifacts PipelineArtifacts

	loader, ok := p.loaders[p.config.DetectorType]
	if !ok {
		return artifacts, &StageError{Stage: StageModelTrainer, Op: "load detector", Err: fmt.Errorf("no loader for detector type '%s'", p.config.DetectorType)}
	}

	p.observer(StageDataIngestion)
	ingestion, err := NewDataIngestion(p.config.IngestionConfig(), p.store, p.config.ShowProgress).InitiateDataIngestion(ctx)
	if err != nil {
		return artifacts, err
	}
	artifacts.DataIngestion = ingestion

	p.observer(StageDataValidation)
	validation, err := NewDataValidation(ingestion, p.config.ValidationConfig(), p.config.WorkDir).InitiateDataValidation(ctx)
	if err != nil {
		return artifacts, err
	}
	artifacts.DataValidation = validation

	if !validation.ValidationStatus {
		return artifacts, &StageError{
			Stage: StageDataValidation,
			Op:    "check required files",
			Err:   fmt.Errorf("%w: missing %v", ErrValidationFailed, validation.MissingFiles),
		}
	}

	p.observer(StageModelTrainer)
	trainer := NewModelTrainer(p.config.TrainerConfig(), loader, TrainerOptions{
		WorkDir:        p.config.WorkDir,
		DatasetArchive: filepath.Join(p.config.WorkDir, filepath.Base(ingestion.DataZipFilePath)),
	})
	trained, err := trainer.InitiateModelTrainer(ctx)
	if err != nil {
		return artifacts, err
	}
	artifacts.ModelTrainer = trained

	if p.config.ModelBucket == "" || p.store == nil {
		return artifacts, nil
	}

	p.observer(StageModelPusher)
	key := path.Join(p.config.ModelKeyPrefix, BestCheckpointFile)
	if err := p.store.UploadFile(ctx, p.config.ModelBucket, key, trained.TrainedModelFilePath); err != nil {
		return artifacts, &StageError{Stage: StageModelPusher, Op: "upload model", Err: err}
	}
	artifacts.PushedModelKey = key
	slog.Info("trained model pushed", "bucket", p.config.ModelBucket, "key", key)

	return artifacts, nil
}
