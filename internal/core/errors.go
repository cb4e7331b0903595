package core

import (
	"errors"
	"fmt"
)

var (
	ErrFeatureStoreUnreadable   = errors.New("feature store is not readable")
	ErrMissingDatasetDescriptor = errors.New("dataset descriptor not found")
	ErrInvalidDatasetDescriptor = errors.New("dataset descriptor is invalid")
	ErrTrainingFailed           = errors.New("training failed")
	ErrMissingCheckpoint        = errors.New("trained checkpoint not found")
	ErrValidationFailed         = errors.New("dataset validation failed")
	ErrDownloadFailed           = errors.New("dataset download failed")
)

type Stage string

const (
	StageDataIngestion  Stage = "data_ingestion"
	StageDataValidation Stage = "data_validation"
	StageModelTrainer   Stage = "model_trainer"
	StageModelPusher    Stage = "model_pusher"
)

// StageError wraps any failure raised while a pipeline stage runs. The
// underlying cause stays reachable through errors.Is / errors.As.
type StageError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Op, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage reports the stage an error originated from, if any.
func FailedStage(err error) (Stage, bool) {
	var serr *StageError
	if errors.As(err, &serr) {
		return serr.Stage, true
	}
	return "", false
}
