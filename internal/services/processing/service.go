package processing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/async"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
	"github.com/joseph-ayodele/submissions-pipeline/internal/ingest"
	"github.com/joseph-ayodele/submissions-pipeline/internal/repository"
)

// Scanner registers a project's folder contents as submissions.
type Scanner interface {
	ScanProject(ctx context.Context, projectID uuid.UUID) (ingest.ScanResult, error)
}

// Service handles the project-level processing triggers.
type Service struct {
	projects repository.ProjectRepository
	subs     repository.SubmissionRepository
	jobs     repository.JobRepository
	slides   repository.SlideRepository
	scanner  Scanner
	queue    async.Queue
	logger   *slog.Logger
}

// NewService creates a new processing service.
func NewService(
	projects repository.ProjectRepository,
	subs repository.SubmissionRepository,
	jobs repository.JobRepository,
	slides repository.SlideRepository,
	scanner Scanner,
	queue async.Queue,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		projects: projects,
		subs:     subs,
		jobs:     jobs,
		slides:   slides,
		scanner:  scanner,
		queue:    queue,
		logger:   logger,
	}
}

// StartResult is returned by the processing trigger before any work runs.
type StartResult struct {
	Message   string    `json:"message"`
	ProjectID uuid.UUID `json:"project_id"`
	Queued    int       `json:"queued"`
}

// ResetResult reports a project reset.
type ResetResult struct {
	ProjectID uuid.UUID    `json:"project_id"`
	Reset     int          `json:"reset"`
	Started   *StartResult `json:"started,omitempty"`
}

const maxProjectName = 200

// CreateProjectRequest represents project creation parameters.
type CreateProjectRequest struct {
	Name           string
	DriveFolderURL string
}

// CreateProject validates the folder link and creates a draft project.
func (s *Service) CreateProject(ctx context.Context, req CreateProjectRequest) (*entity.Project, error) {
	validator := common.NewValidator()
	validator.Field("name", req.Name, common.Required)
	validator.Field("drive_folder_url", req.DriveFolderURL, common.Required, common.DriveFolderURL)
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}
	if verr := common.MaxLength("name", strings.TrimSpace(req.Name), maxProjectName); verr != nil {
		return nil, common.InvalidArgumentErrorf("%s %s", verr.Field, verr.Message)
	}

	folderID, _ := common.ParseDriveFolderID(req.DriveFolderURL)
	p, err := s.projects.Create(ctx, entity.Project{
		Name:           strings.TrimSpace(req.Name),
		DriveFolderID:  folderID,
		DriveFolderURL: strings.TrimSpace(req.DriveFolderURL),
	})
	if err != nil {
		return nil, common.InternalErrorf("create project: %v", err)
	}
	s.logger.Info("project created successfully", "project_id", p.ID, "folder_id", folderID)
	return p, nil
}

// StartProcessing reports how many submissions are pending and queues a
// batch for them. The batch itself runs in the background.
func (s *Service) StartProcessing(ctx context.Context, rawProjectID string) (StartResult, error) {
	projectID, err := s.project(ctx, rawProjectID)
	if err != nil {
		return StartResult{}, err
	}
	return s.start(ctx, projectID)
}

func (s *Service) start(ctx context.Context, projectID uuid.UUID) (StartResult, error) {
	pending, err := s.subs.CountByStatus(ctx, projectID, constants.SubmissionPending)
	if err != nil {
		s.logger.Error("count pending submissions failed", "project_id", projectID, "error", err)
		return StartResult{}, common.ToStatus(err)
	}

	res := StartResult{ProjectID: projectID, Queued: pending}
	if pending == 0 {
		res.Message = "No pending submissions to process"
		s.logger.Info("processing not started: nothing pending", "project_id", projectID)
		return res, nil
	}

	if err := s.queue.Enqueue(ctx, async.Job{
		ProjectID:   projectID,
		SubmittedAt: time.Now(),
		TraceID:     common.RequestIDFromContext(ctx),
	}); err != nil {
		s.logger.Error("enqueue failed for project", "project_id", projectID, "err", err)
		return StartResult{}, common.UnavailableError(fmt.Sprintf("enqueue failed: %v", err))
	}

	res.Message = fmt.Sprintf("Processing started for %d submissions", pending)
	s.logger.Info("processing started", "project_id", projectID, "queued", pending)
	return res, nil
}

// ResetProject puts every submission of the project back to pending and drops
// its slides. With reprocess set, a new batch is queued afterwards.
func (s *Service) ResetProject(ctx context.Context, rawProjectID string, reprocess bool) (ResetResult, error) {
	projectID, err := s.project(ctx, rawProjectID)
	if err != nil {
		return ResetResult{}, err
	}

	n, err := s.subs.ResetProject(ctx, projectID)
	if err != nil {
		return ResetResult{ProjectID: projectID, Reset: n}, common.InternalErrorf("reset project: %v", err)
	}
	res := ResetResult{ProjectID: projectID, Reset: n}
	s.logger.Info("project reset", "project_id", projectID, "submissions", n, "reprocess", reprocess)

	if reprocess {
		started, err := s.start(ctx, projectID)
		if err != nil {
			return res, err
		}
		res.Started = &started
	}
	return res, nil
}

// RetryFailed moves failed submissions whose fetch job still has retries left
// back to pending and queues a batch for them.
func (s *Service) RetryFailed(ctx context.Context, rawProjectID string) (StartResult, error) {
	projectID, err := s.project(ctx, rawProjectID)
	if err != nil {
		return StartResult{}, err
	}
	n, err := s.subs.RequeueRetryable(ctx, projectID)
	if err != nil {
		return StartResult{}, common.InternalErrorf("requeue retryable: %v", err)
	}
	s.logger.Info("retryable submissions requeued", "project_id", projectID, "submissions", n)
	return s.start(ctx, projectID)
}

// ScanProject registers new documents from the project's folder.
func (s *Service) ScanProject(ctx context.Context, rawProjectID string) (ingest.ScanResult, error) {
	projectID, err := s.project(ctx, rawProjectID)
	if err != nil {
		return ingest.ScanResult{}, err
	}
	res, err := s.scanner.ScanProject(ctx, projectID)
	if err != nil {
		return res, common.ToStatus(err)
	}
	return res, nil
}

// project parses and checks a project id.
func (s *Service) project(ctx context.Context, raw string) (uuid.UUID, error) {
	id, err := parseID("project_id", raw)
	if err != nil {
		s.logger.Error("invalid project_id format", "project_id", raw, "error", err)
		return uuid.Nil, err
	}
	exists, err := s.projects.Exists(ctx, id)
	if err != nil {
		return uuid.Nil, common.ToStatus(err)
	}
	if !exists {
		s.logger.Error("project not found", "project_id", id)
		return uuid.Nil, common.NotFoundErrorf("project %s not found", id)
	}
	return id, nil
}

// parseID validates raw as a UUID and returns an InvalidArgument status when it is not.
func parseID(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if err := common.ValidateAndReturnError(common.NewValidator().Field(field, raw, common.UUID)); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}
