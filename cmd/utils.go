package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sign-lang-pipeline/internal/api"
	"sign-lang-pipeline/internal/config"
	"sign-lang-pipeline/internal/core"
	"sign-lang-pipeline/internal/database"
	"sign-lang-pipeline/internal/messaging"
	"sign-lang-pipeline/internal/storage"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// SetupLogFile tees log output to root/logs/<name>.log and stderr.
func SetupLogFile(root, name string) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logDir := filepath.Join(root, "logs")
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, name+".log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	return f
}

func CreateObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if !cfg.S3Config.Enabled() {
		store, err := storage.NewLocalObjectStore(cfg.StorageDir())
		if err != nil {
			return nil, fmt.Errorf("error creating local object store: %w", err)
		}
		return store, nil
	}

	store, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating s3 object store: %w", err)
	}

	if cfg.ModelBucketName != "" {
		if err := store.CreateBucket(ctx, cfg.ModelBucketName); err != nil {
			return nil, fmt.Errorf("error creating model bucket: %w", err)
		}
		if err := store.CheckAccess(ctx, cfg.ModelBucketName); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// RequeueQueuedRuns republishes runs that were queued but never picked up,
// for queues that do not survive a restart.
func RequeueQueuedRuns(ctx context.Context, db *gorm.DB, publisher messaging.Publisher) error {
	var runs []database.PipelineRun
	if err := db.WithContext(ctx).Where("status = ?", database.RunQueued).Order("creation_time").Find(&runs).Error; err != nil {
		return fmt.Errorf("error fetching queued runs: %w", err)
	}

	for _, run := range runs {
		if err := publisher.PublishPipelineTask(ctx, messaging.PipelineTaskPayload{RunId: run.Id}); err != nil {
			return fmt.Errorf("error requeueing run %s: %w", run.Id, err)
		}
	}

	return nil
}

// StartWorker starts consuming tasks and then republishes queued runs in the
// background. The backlog can be larger than the queue buffer, so publishing
// must not wait for the worker.
func StartWorker(db *gorm.DB, worker *core.TaskProcessor, publisher messaging.Publisher) {
	go worker.Start()

	go func() {
		if err := RequeueQueuedRuns(context.Background(), db, publisher); err != nil {
			slog.Error("error requeueing pipeline runs", "error", err)
		}
	}()
}

func RunDefaults(cfg config.Config) api.RunDefaults {
	return api.RunDefaults{
		DataUrl:       cfg.DataDownloadURL,
		RequiredFiles: cfg.RequiredFiles,
		WeightName:    cfg.WeightName,
		Epochs:        cfg.Epochs,
		BatchSize:     cfg.BatchSize,
		DetectorType:  cfg.DetectorType,
	}
}

func CreateServer(db *gorm.DB, publisher messaging.Publisher, cfg config.Config) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300, // Cache preflight response for 5 minutes
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(db, publisher, RunDefaults(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}
}
