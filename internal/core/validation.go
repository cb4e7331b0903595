package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/internal/core/utils"
)

const statusFilePrefix = "Validation status: "

type DataValidation struct {
	ingestion types.DataIngestionArtifact
	config    types.DataValidationConfig
	workDir   string
}

// NewDataValidation checks the feature store described by ingestion. On
// success the ingested archive is copied into workDir; an empty workDir means
// the process working directory.
func NewDataValidation(ingestion types.DataIngestionArtifact, config types.DataValidationConfig, workDir string) *DataValidation {
	return &DataValidation{
		ingestion: ingestion,
		config:    config,
		workDir:   workDir,
	}
}

func (v *DataValidation) ValidateAllFilesExist() (bool, error) {
	status, _, err := v.validate()
	return status, err
}

func (v *DataValidation) validate() (bool, []string, error) {
	if err := os.MkdirAll(v.config.DataValidationDir, os.ModePerm); err != nil {
		return false, nil, &StageError{Stage: StageDataValidation, Op: "create validation dir", Err: err}
	}

	entries, err := os.ReadDir(v.ingestion.FeatureStorePath)
	if err != nil {
		return false, nil, &StageError{
			Stage: StageDataValidation,
			Op:    "list feature store",
			Err:   fmt.Errorf("%w: %w", ErrFeatureStoreUnreadable, err),
		}
	}

	present := make([]string, 0, len(entries))
	for _, entry := range entries {
		present = append(present, entry.Name())
	}

	missing := MissingFiles(v.config.RequiredFileList, present)
	status := len(missing) == 0

	if err := WriteValidationStatus(v.config.ValidStatusFilePath, status); err != nil {
		return false, missing, &StageError{Stage: StageDataValidation, Op: "write status file", Err: err}
	}

	return status, missing, nil
}

func (v *DataValidation) InitiateDataValidation(ctx context.Context) (types.DataValidationArtifact, error) {
	slog.Info("starting data validation", "feature_store", v.ingestion.FeatureStorePath)

	status, missing, err := v.validate()
	if err != nil {
		return types.DataValidationArtifact{}, err
	}

	artifact := types.DataValidationArtifact{ValidationStatus: status, MissingFiles: missing}
	slog.Info("data validation completed", "validation_status", status, "missing_files", missing)

	if !status {
		return artifact, nil
	}

	if err := ctx.Err(); err != nil {
		return artifact, &StageError{Stage: StageDataValidation, Op: "copy archive", Err: err}
	}

	workDir := v.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return artifact, &StageError{Stage: StageDataValidation, Op: "resolve working dir", Err: err}
		}
	}

	dst, err := utils.CopyFileToDir(v.ingestion.DataZipFilePath, workDir)
	if err != nil {
		return artifact, &StageError{Stage: StageDataValidation, Op: "copy archive", Err: err}
	}
	slog.Info("copied dataset archive", "src", v.ingestion.DataZipFilePath, "dst", dst)

	return artifact, nil
}

// MissingFiles returns the entries of required not present in listing,
// preserving the order of required.
func MissingFiles(required, listing []string) []string {
	present := make(map[string]struct{}, len(listing))
	for _, name := range listing {
		present[name] = struct{}{}
	}

	var missing []string
	for _, name := range required {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func FormatValidationStatus(status bool) string {
	if status {
		return statusFilePrefix + "True"
	}
	return statusFilePrefix + "False"
}

func WriteValidationStatus(path string, status bool) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(FormatValidationStatus(status)), 0644); err != nil {
		return fmt.Errorf("error writing validation status to %s: %w", path, err)
	}
	return nil
}
