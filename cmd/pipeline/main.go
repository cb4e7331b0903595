package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sign-lang-pipeline/cmd"
	"sign-lang-pipeline/internal/config"
	"sign-lang-pipeline/internal/core"
	"syscall"
)

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	logFile := cmd.SetupLogFile(cfg.Root, "pipeline")
	defer logFile.Close()

	if cfg.DataDownloadURL == "" {
		log.Fatalf("DATA_DOWNLOAD_URL must be set")
	}

	workDir, err := os.Getwd()
	if err != nil {
		log.Fatalf("error getting working directory: %v", err)
	}

	pipelineCfg, err := cfg.PipelineConfig(workDir)
	if err != nil {
		log.Fatalf("error creating pipeline config: %v", err)
	}
	pipelineCfg.ShowProgress = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cmd.CreateObjectStore(ctx, cfg)
	if err != nil {
		log.Fatalf("error creating object store: %v", err)
	}

	slog.Info("starting training pipeline", "work_dir", workDir, "data_url", cfg.DataDownloadURL, "detector", cfg.DetectorType)

	observer := func(stage core.Stage) {
		slog.Info("pipeline stage started", "stage", stage)
	}

	artifacts, err := core.NewTrainingPipeline(pipelineCfg, store, cfg.Loaders(), observer).Run(ctx)
	if err != nil {
		if stage, ok := core.FailedStage(err); ok {
			slog.Error("pipeline failed", "stage", stage, "error", err)
		}
		log.Fatalf("training pipeline failed: %v", err)
	}

	out, err := json.MarshalIndent(artifacts, "", "  ")
	if err != nil {
		log.Fatalf("error serializing pipeline artifacts: %v", err)
	}

	slog.Info("training pipeline completed", "trained_model_file_path", artifacts.ModelTrainer.TrainedModelFilePath)
	os.Stdout.Write(append(out, '\n')) //nolint:errcheck
}
