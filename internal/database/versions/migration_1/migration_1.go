package migration_1

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

type PipelineRun struct {
	PushedModelKey sql.NullString
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&PipelineRun{}, "PushedModelKey"); err != nil {
		return fmt.Errorf("error adding PushedModelKey column: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&PipelineRun{}, "PushedModelKey"); err != nil {
		return fmt.Errorf("error dropping PushedModelKey column: %w", err)
	}

	return nil
}
