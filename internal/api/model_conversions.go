package api

import (
	"database/sql"
	"log/slog"
	"sign-lang-pipeline/internal/database"
	"sign-lang-pipeline/pkg/api"
	"time"
)

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func convertRunErrors(es []database.RunError) []api.RunError {
	var errs []api.RunError
	for _, e := range es {
		errs = append(errs, api.RunError{Stage: e.Stage, Error: e.Error, Timestamp: e.Timestamp})
	}
	return errs
}

func convertRun(r database.PipelineRun) api.Run {
	requiredFiles, err := r.RequiredFileList()
	if err != nil {
		slog.Error("error decoding required files", "run_id", r.Id, "error", err)
	}

	run := api.Run{
		Id:               r.Id,
		Name:             r.Name,
		Status:           r.Status,
		Stage:            r.Stage,
		DataUrl:          r.DataDownloadURL,
		RequiredFiles:    requiredFiles,
		WeightName:       r.WeightName,
		Epochs:           r.Epochs,
		BatchSize:        r.BatchSize,
		DetectorType:     r.DetectorType,
		TrainedModelPath: nullableString(r.TrainedModelPath),
		PushedModelKey:   nullableString(r.PushedModelKey),
		CreationTime:     r.CreationTime,
		StartTime:        nullableTime(r.StartTime),
		CompletionTime:   nullableTime(r.CompletionTime),
		Errors:           convertRunErrors(r.Errors),
	}

	if r.ValidationStatus.Valid {
		run.ValidationStatus = &r.ValidationStatus.Bool
	}

	return run
}

func convertRuns(rs []database.PipelineRun) []api.Run {
	runs := make([]api.Run, 0, len(rs))
	for _, r := range rs {
		runs = append(runs, convertRun(r))
	}
	return runs
}
