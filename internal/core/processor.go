package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sign-lang-pipeline/internal/database"
	"sign-lang-pipeline/internal/messaging"
	"sign-lang-pipeline/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskProcessor struct {
	db        *gorm.DB
	storage   storage.ObjectStore
	publisher messaging.Publisher
	reciever  messaging.Reciever

	workRoot    string
	modelBucket string
	loaders     map[DetectorType]DetectorLoader

	ctx    context.Context
	cancel context.CancelFunc
}

func NewTaskProcessor(db *gorm.DB, storage storage.ObjectStore, publisher messaging.Publisher, reciever messaging.Reciever, workRoot string, modelBucket string, loaders map[DetectorType]DetectorLoader) *TaskProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskProcessor{
		db:          db,
		storage:     storage,
		publisher:   publisher,
		reciever:    reciever,
		workRoot:    workRoot,
		modelBucket: modelBucket,
		loaders:     loaders,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}
}

// Stop interrupts a running pipeline and closes the queue connections.
func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.cancel()
	proc.publisher.Close()
	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	var err error
	switch task.Type() {
	case messaging.PipelineQueue:
		var payload messaging.PipelineTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling pipeline task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processPipelineTask(proc.ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) RunDir(runId uuid.UUID) string {
	return filepath.Join(proc.workRoot, runId.String())
}

func (proc *TaskProcessor) processPipelineTask(ctx context.Context, payload messaging.PipelineTaskPayload) error {
	runId := payload.RunId

	var run database.PipelineRun
	if err := proc.db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		slog.Error("error fetching pipeline run", "run_id", runId, "error", err)
		return fmt.Errorf("error getting pipeline run: %w", err)
	}

	if run.Status != database.RunQueued {
		slog.Info("pipeline run is not queued, skipping", "run_id", runId, "status", run.Status)
		return nil
	}

	slog.Info("processing pipeline run", "run_id", runId, "name", run.Name)
	database.UpdateRunStatus(ctx, proc.db, runId, database.RunRunning) //nolint:errcheck

	config, err := proc.pipelineConfig(run)
	if err != nil {
		database.SaveRunError(ctx, proc.db, runId, "", err.Error())
		database.UpdateRunStatus(ctx, proc.db, runId, database.RunFailed) //nolint:errcheck
		return err
	}

	observer := func(stage Stage) {
		slog.Info("pipeline stage started", "run_id", runId, "stage", stage)
		database.UpdateRunStage(ctx, proc.db, runId, string(stage)) //nolint:errcheck
	}

	artifacts, runErr := NewTrainingPipeline(config, proc.storage, proc.loaders, observer).Run(ctx)

	outcome := database.RunOutcome{
		ValidationStatus: validationOutcome(runErr),
		TrainedModelPath: artifacts.ModelTrainer.TrainedModelFilePath,
		PushedModelKey:   artifacts.PushedModelKey,
	}
	if err := database.SaveRunOutcome(ctx, proc.db, runId, outcome); err != nil {
		slog.Error("error recording pipeline outcome", "run_id", runId, "error", err)
	}

	if runErr != nil {
		stage, _ := FailedStage(runErr)
		slog.Error("pipeline run failed", "run_id", runId, "stage", stage, "error", runErr)
		// The context may already be cancelled, so failures are recorded without it.
		database.SaveRunError(context.Background(), proc.db, runId, string(stage), runErr.Error())
		database.UpdateRunStatus(context.Background(), proc.db, runId, database.RunFailed) //nolint:errcheck
		return fmt.Errorf("error running pipeline: %w", runErr)
	}

	if err := database.UpdateRunStatus(ctx, proc.db, runId, database.RunCompleted); err != nil {
		return fmt.Errorf("error updating pipeline run status to complete: %w", err)
	}

	slog.Info("pipeline run completed", "run_id", runId, "trained_model_file_path", artifacts.ModelTrainer.TrainedModelFilePath)
	return nil
}

func (proc *TaskProcessor) pipelineConfig(run database.PipelineRun) (PipelineConfig, error) {
	detectorType, err := ParseDetectorType(run.DetectorType)
	if err != nil {
		return PipelineConfig{}, err
	}

	requiredFiles, err := run.RequiredFileList()
	if err != nil {
		return PipelineConfig{}, err
	}

	runDir := proc.RunDir(run.Id)

	return PipelineConfig{
		ArtifactsDir:    filepath.Join(runDir, "artifacts"),
		WorkDir:         runDir,
		DataDownloadURL: run.DataDownloadURL,
		RequiredFiles:   requiredFiles,
		WeightName:      run.WeightName,
		Epochs:          run.Epochs,
		BatchSize:       run.BatchSize,
		DetectorType:    detectorType,
		ModelBucket:     proc.modelBucket,
		ModelKeyPrefix:  run.Id.String(),
	}, nil
}

// validationOutcome derives the validation status from how far the pipeline
// got. nil means validation never ran to completion.
func validationOutcome(runErr error) *bool {
	passed, failed := true, false

	if runErr == nil {
		return &passed
	}
	if errors.Is(runErr, ErrValidationFailed) {
		return &failed
	}
	if stage, ok := FailedStage(runErr); ok && (stage == StageModelTrainer || stage == StageModelPusher) {
		return &passed
	}
	return nil
}
