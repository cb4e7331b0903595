package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunQueued    string = "QUEUED"
	RunRunning   string = "RUNNING"
	RunCompleted string = "COMPLETED"
	RunFailed    string = "FAILED"
)

type PipelineRun struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null"`

	Status string `gorm:"size:20;not null"`
	Stage  string `gorm:"size:32"`

	DataDownloadURL string
	RequiredFiles   datatypes.JSON `gorm:"type:jsonb"` // ["train","valid",...]
	WeightName      string
	Epochs          int
	BatchSize       int
	DetectorType    string `gorm:"size:20"`

	ValidationStatus sql.NullBool
	TrainedModelPath sql.NullString
	PushedModelKey   sql.NullString

	CreationTime   time.Time
	StartTime      sql.NullTime
	CompletionTime sql.NullTime

	Errors []RunError `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type RunError struct {
	RunId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Stage     string    `gorm:"size:32"`
	Error     string
	Timestamp time.Time
}
