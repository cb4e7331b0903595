package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateRunRequest struct {
	Name string

	DataUrl       string
	RequiredFiles []string `json:"RequiredFiles,omitempty"`

	WeightName   string
	Epochs       int
	BatchSize    int
	DetectorType string `json:"DetectorType,omitempty"`
}

type CreateRunResponse struct {
	RunId uuid.UUID
}

type ListRunsParams struct {
	Status string `schema:"status"`
}

type RunError struct {
	Stage     string
	Error     string
	Timestamp time.Time
}

type Run struct {
	Id     uuid.UUID
	Name   string
	Status string
	Stage  string

	DataUrl       string
	RequiredFiles []string
	WeightName    string
	Epochs        int
	BatchSize     int
	DetectorType  string

	ValidationStatus *bool   `json:"ValidationStatus,omitempty"`
	TrainedModelPath *string `json:"TrainedModelPath,omitempty"`
	PushedModelKey   *string `json:"PushedModelKey,omitempty"`

	CreationTime   time.Time
	StartTime      *time.Time `json:"StartTime,omitempty"`
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`

	Errors []RunError `json:"Errors,omitempty"`
}
