package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/internal/core/utils"
)

const (
	TrainImageSize      = 416
	DefaultTrainRunName = "yolov11_sign_language"
	BestCheckpointFile  = "best.pt"
)

type TrainerOptions struct {
	// WorkDir holds data.yaml and receives the framework's runs/ output.
	// Empty means the process working directory.
	WorkDir string
	// DatasetArchive, if set, is extracted into WorkDir when data.yaml is
	// not already there.
	DatasetArchive string
	RunName        string
}

type ModelTrainer struct {
	config types.ModelTrainerConfig
	loader DetectorLoader
	opts   TrainerOptions
}

func NewModelTrainer(config types.ModelTrainerConfig, loader DetectorLoader, opts TrainerOptions) *ModelTrainer {
	if opts.RunName == "" {
		opts.RunName = DefaultTrainRunName
	}
	return &ModelTrainer{config: config, loader: loader, opts: opts}
}

// BestCheckpointPath is where the framework leaves the best weights of a run.
func BestCheckpointPath(workDir, runName string) string {
	return filepath.Join(workDir, "runs", "detect", runName, "weights", BestCheckpointFile)
}

func TrainedModelPath(modelTrainerDir string) string {
	return filepath.Join(modelTrainerDir, BestCheckpointFile)
}

func (t *ModelTrainer) InitiateModelTrainer(ctx context.Context) (types.ModelTrainerArtifact, error) {
	slog.Info("starting model training", "weights", t.config.WeightName, "epochs", t.config.NoEpochs, "batch_size", t.config.BatchSize)

	workDir, err := t.resolveWorkDir()
	if err != nil {
		return types.ModelTrainerArtifact{}, &StageError{Stage: StageModelTrainer, Op: "resolve working dir", Err: err}
	}

	if err := t.ensureDescriptor(workDir); err != nil {
		return types.ModelTrainerArtifact{}, &StageError{Stage: StageModelTrainer, Op: "load dataset descriptor", Err: err}
	}

	detector, err := t.loader(t.config.WeightName)
	if err != nil {
		return types.ModelTrainerArtifact{}, &StageError{Stage: StageModelTrainer, Op: "load detector", Err: err}
	}
	defer detector.Release()

	params := types.TrainParams{
		WorkDir:   workDir,
		Data:      DatasetDescriptorFile,
		Project:   filepath.Join(workDir, "runs", "detect"),
		Name:      t.opts.RunName,
		Epochs:    t.config.NoEpochs,
		Batch:     t.config.BatchSize,
		ImageSize: TrainImageSize,
		Cache:     true,
	}

	if err := detector.Train(ctx, params); err != nil {
		return types.ModelTrainerArtifact{}, &StageError{
			Stage: StageModelTrainer,
			Op:    "train",
			Err:   fmt.Errorf("%w: %w", ErrTrainingFailed, err),
		}
	}

	bestModelPath := BestCheckpointPath(workDir, t.opts.RunName)
	if _, err := os.Stat(bestModelPath); err != nil {
		return types.ModelTrainerArtifact{}, &StageError{
			Stage: StageModelTrainer,
			Op:    "locate checkpoint",
			Err:   fmt.Errorf("%w: %s: %w", ErrMissingCheckpoint, bestModelPath, err),
		}
	}

	if err := os.MkdirAll(t.config.ModelTrainerDir, os.ModePerm); err != nil {
		return types.ModelTrainerArtifact{}, &StageError{Stage: StageModelTrainer, Op: "create model dir", Err: err}
	}

	finalModelPath := TrainedModelPath(t.config.ModelTrainerDir)
	if err := utils.CopyFile(bestModelPath, finalModelPath); err != nil {
		return types.ModelTrainerArtifact{}, &StageError{Stage: StageModelTrainer, Op: "copy checkpoint", Err: err}
	}

	artifact := types.ModelTrainerArtifact{TrainedModelFilePath: finalModelPath}
	slog.Info("model training completed", "trained_model_file_path", artifact.TrainedModelFilePath)

	return artifact, nil
}

func (t *ModelTrainer) resolveWorkDir() (string, error) {
	if t.opts.WorkDir == "" {
		return os.Getwd()
	}
	return filepath.Abs(t.opts.WorkDir)
}

func (t *ModelTrainer) ensureDescriptor(workDir string) error {
	descriptorPath := filepath.Join(workDir, DatasetDescriptorFile)

	_, err := LoadDatasetDescriptor(descriptorPath)
	if err == nil || !errors.Is(err, ErrMissingDatasetDescriptor) || t.opts.DatasetArchive == "" {
		return err
	}

	slog.Info("dataset descriptor not found, extracting dataset archive", "archive", t.opts.DatasetArchive, "dir", workDir)
	if err := utils.ExtractZip(t.opts.DatasetArchive, workDir); err != nil {
		return fmt.Errorf("error extracting dataset archive: %w", err)
	}

	_, err = LoadDatasetDescriptor(descriptorPath)
	return err
}
