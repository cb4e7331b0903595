package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sign-lang-pipeline/internal/core"
	"sign-lang-pipeline/internal/database"
	"sign-lang-pipeline/internal/messaging"
	"sign-lang-pipeline/pkg/api"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunDefaults fill in any field a create request leaves empty.
type RunDefaults struct {
	DataUrl       string
	RequiredFiles []string
	WeightName    string
	Epochs        int
	BatchSize     int
	DetectorType  string
}

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	defaults  RunDefaults
}

func NewBackendService(db *gorm.DB, pub messaging.Publisher, defaults RunDefaults) *BackendService {
	return &BackendService{db: db, publisher: pub, defaults: defaults}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListRuns))
		r.Post("/", RestHandler(s.CreateRun))
		r.Get("/{run_id}", RestHandler(s.GetRun))
	})
}

func (s *BackendService) ListRuns(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListRunsParams](r)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(r.Context()).Order("creation_time DESC")
	if params.Status != "" {
		status := strings.ToUpper(params.Status)
		switch status {
		case database.RunQueued, database.RunRunning, database.RunCompleted, database.RunFailed:
		default:
			return nil, CodedErrorf(http.StatusBadRequest, "invalid status filter '%s'", params.Status)
		}
		query = query.Where("status = ?", status)
	}

	var runs []database.PipelineRun
	if err := query.Find(&runs).Error; err != nil {
		slog.Error("error listing pipeline runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving pipeline runs")
	}

	return convertRuns(runs), nil
}

func (s *BackendService) GetRun(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	var run database.PipelineRun
	if err := s.db.WithContext(r.Context()).Preload("Errors").First(&run, "id = ?", runId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "pipeline run not found")
		}
		slog.Error("error getting pipeline run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving pipeline run record")
	}

	return convertRun(run), nil
}

func (s *BackendService) CreateRun(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateRunRequest](r)
	if err != nil {
		return nil, err
	}

	s.applyDefaults(&req)

	if err := validateName(req.Name); err != nil {
		return nil, err
	}

	if err := validateDataUrl(req.DataUrl); err != nil {
		return nil, err
	}

	if req.WeightName == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "weight name is required")
	}

	if req.Epochs <= 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "epochs must be positive")
	}

	// yolo accepts -1 as a request for automatic batch sizing.
	if req.BatchSize == 0 || req.BatchSize < -1 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "batch size must be positive or -1")
	}

	if _, err := core.ParseDetectorType(req.DetectorType); err != nil {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "%v", err)
	}

	requiredFiles, err := database.EncodeRequiredFiles(req.RequiredFiles)
	if err != nil {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "invalid required files: %v", err)
	}

	ctx := r.Context()

	run := database.PipelineRun{
		Id:              uuid.New(),
		Name:            req.Name,
		Status:          database.RunQueued,
		DataDownloadURL: req.DataUrl,
		RequiredFiles:   datatypes.JSON(requiredFiles),
		WeightName:      req.WeightName,
		Epochs:          req.Epochs,
		BatchSize:       req.BatchSize,
		DetectorType:    req.DetectorType,
		CreationTime:    time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		slog.Error("error creating pipeline run", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create pipeline run entry")
	}

	if err := s.publisher.PublishPipelineTask(ctx, messaging.PipelineTaskPayload{RunId: run.Id}); err != nil {
		slog.Error("error publishing pipeline task", "run_id", run.Id, "error", err)
		database.UpdateRunStatus(ctx, s.db, run.Id, database.RunFailed) //nolint:errcheck
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue pipeline run")
	}

	slog.Info("submitted pipeline run", "run_id", run.Id, "name", run.Name)

	return api.CreateRunResponse{RunId: run.Id}, nil
}

func (s *BackendService) applyDefaults(req *api.CreateRunRequest) {
	if req.DataUrl == "" {
		req.DataUrl = s.defaults.DataUrl
	}
	if len(req.RequiredFiles) == 0 {
		req.RequiredFiles = s.defaults.RequiredFiles
	}
	if req.WeightName == "" {
		req.WeightName = s.defaults.WeightName
	}
	if req.Epochs == 0 {
		req.Epochs = s.defaults.Epochs
	}
	if req.BatchSize == 0 {
		req.BatchSize = s.defaults.BatchSize
	}
	if req.DetectorType == "" {
		req.DetectorType = s.defaults.DetectorType
	}
}

func validateDataUrl(dataUrl string) error {
	if dataUrl == "" {
		return CodedErrorf(http.StatusUnprocessableEntity, "data url is required")
	}

	u, err := url.Parse(dataUrl)
	if err != nil {
		return CodedErrorf(http.StatusUnprocessableEntity, "invalid data url '%s': %v", dataUrl, err)
	}

	switch u.Scheme {
	case "http", "https", "s3":
		if u.Host == "" {
			return CodedErrorf(http.StatusUnprocessableEntity, "data url '%s' is missing a host", dataUrl)
		}
	case "", "file":
	default:
		return CodedErrorf(http.StatusUnprocessableEntity, "unsupported data url scheme '%s'", u.Scheme)
	}

	return nil
}
