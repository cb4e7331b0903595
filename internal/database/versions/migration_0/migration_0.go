package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PipelineRun struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null"`

	Status string `gorm:"size:20;not null"`
	Stage  string `gorm:"size:32"`

	DataDownloadURL string
	RequiredFiles   datatypes.JSON `gorm:"type:jsonb"`
	WeightName      string
	Epochs          int
	BatchSize       int
	DetectorType    string `gorm:"size:20"`

	ValidationStatus sql.NullBool
	TrainedModelPath sql.NullString

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

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&PipelineRun{}, &RunError{}); err != nil {
		return fmt.Errorf("error creating initial tables: %w", err)
	}
	return nil
}
