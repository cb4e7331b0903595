package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sign-lang-pipeline/cmd"
	"sign-lang-pipeline/internal/config"
	"sign-lang-pipeline/internal/core"
	"sign-lang-pipeline/internal/database"
	"sign-lang-pipeline/internal/messaging"
	"syscall"
	"time"
)

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	logFile := cmd.SetupLogFile(cfg.Root, "backend")
	defer logFile.Close()

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.APIPort, "detector", cfg.DetectorType)

	db, err := database.NewDatabase(cfg.DatabaseURLOrDefault())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store, err := cmd.CreateObjectStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	worker := core.NewTaskProcessor(db, store, queue, queue, cfg.RunsDir(), cfg.ModelBucketName, cfg.Loaders())

	server := cmd.CreateServer(db, queue, cfg)

	slog.Info("starting worker")
	cmd.StartWorker(db, worker, queue)

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	slog.Info("server stopped")
}
