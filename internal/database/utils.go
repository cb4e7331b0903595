package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateRunStatus(ctx context.Context, txn *gorm.DB, runId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	switch status {
	case RunRunning:
		updates["start_time"] = time.Now().UTC()
	case RunCompleted, RunFailed:
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&PipelineRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating run status", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

func UpdateRunStage(ctx context.Context, txn *gorm.DB, runId uuid.UUID, stage string) error {
	if err := txn.WithContext(ctx).Model(&PipelineRun{Id: runId}).Update("stage", stage).Error; err != nil {
		slog.Error("error updating run stage", "run_id", runId, "stage", stage, "error", err)
		return err
	}
	return nil
}

type RunOutcome struct {
	ValidationStatus *bool
	TrainedModelPath string
	PushedModelKey   string
}

func SaveRunOutcome(ctx context.Context, txn *gorm.DB, runId uuid.UUID, outcome RunOutcome) error {
	updates := map[string]any{}
	if outcome.ValidationStatus != nil {
		updates["validation_status"] = sql.NullBool{Bool: *outcome.ValidationStatus, Valid: true}
	}
	if outcome.TrainedModelPath != "" {
		updates["trained_model_path"] = sql.NullString{String: outcome.TrainedModelPath, Valid: true}
	}
	if outcome.PushedModelKey != "" {
		updates["pushed_model_key"] = sql.NullString{String: outcome.PushedModelKey, Valid: true}
	}
	if len(updates) == 0 {
		return nil
	}

	if err := txn.WithContext(ctx).Model(&PipelineRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error saving run outcome", "run_id", runId, "error", err)
		return fmt.Errorf("error saving run outcome: %w", err)
	}
	return nil
}

func SaveRunError(ctx context.Context, txn *gorm.DB, runId uuid.UUID, stage string, errorMessage string) {
	runError := RunError{
		RunId:     runId,
		ErrorId:   uuid.New(),
		Stage:     stage,
		Error:     errorMessage,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&runError).Error; err != nil {
		slog.Error("error saving run error", "run_id", runId, "error", err)
	}
}

func EncodeRequiredFiles(files []string) ([]byte, error) {
	if files == nil {
		files = []string{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("error encoding required files: %w", err)
	}
	return data, nil
}

func (r *PipelineRun) RequiredFileList() ([]string, error) {
	if len(r.RequiredFiles) == 0 {
		return nil, nil
	}

	var files []string
	if err := json.Unmarshal(r.RequiredFiles, &files); err != nil {
		return nil, fmt.Errorf("error decoding required files for run %s: %w", r.Id, err)
	}
	return files, nil
}
