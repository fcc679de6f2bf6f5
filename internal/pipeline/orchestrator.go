// Package pipeline drives pending submissions through fetch, extract and store,
// keeping submission status and the job ledger current as it goes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
	"github.com/joseph-ayodele/submissions-pipeline/internal/fetch"
	"github.com/joseph-ayodele/submissions-pipeline/internal/metrics"
	"github.com/joseph-ayodele/submissions-pipeline/internal/repository"
)

// Fetcher downloads a submission's document.
type Fetcher interface {
	Fetch(ctx context.Context, ref fetch.Ref) ([]byte, error)
}

// Extractor turns document bytes into page records.
type Extractor interface {
	Extract(ctx context.Context, data []byte, submissionID string) ([]entity.PageRecord, error)
}

const (
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageStore   = "store"
)

// FetchErrorMessage is recorded on the fetch job when a download fails.
func FetchErrorMessage(driveFileID string) string {
	return fmt.Sprintf("Failed to stream PDF from Drive (file_id=%s)", driveFileID)
}

// SubmissionFailure describes one submission that ended the batch failed.
type SubmissionFailure struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Stage        string    `json:"stage"`
	Error        string    `json:"error"`
}

// BatchSummary is what one ProcessBatch call did.
type BatchSummary struct {
	ProjectID    uuid.UUID           `json:"project_id"`
	Selected     int                 `json:"selected"`
	Completed    int                 `json:"completed"`
	Failed       int                 `json:"failed"`
	Skipped      int                 `json:"skipped"`
	SlidesStored int                 `json:"slides_stored"`
	Failures     []SubmissionFailure `json:"failures,omitempty"`
	Duration     time.Duration       `json:"duration"`
}

type Orchestrator struct {
	subs      repository.SubmissionRepository
	jobs      repository.JobRepository
	slides    repository.SlideRepository
	projects  repository.ProjectRepository
	fetcher   Fetcher
	extractor Extractor
	logger    *slog.Logger

	concurrency int
}

type Option func(*Orchestrator)

// WithConcurrency processes up to n submissions of a batch at once. The
// default of 1 keeps a batch strictly sequential.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func NewOrchestrator(
	subs repository.SubmissionRepository,
	jobs repository.JobRepository,
	slides repository.SlideRepository,
	projects repository.ProjectRepository,
	fetcher Fetcher,
	extractor Extractor,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		subs:        subs,
		jobs:        jobs,
		slides:      slides,
		projects:    projects,
		fetcher:     fetcher,
		extractor:   extractor,
		logger:      logger,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessBatch runs every pending submission of a project to a terminal
// status. Per-submission failures are recorded in the database and the
// summary, never returned. The error is non-nil only when the pending
// submissions could not be selected.
func (o *Orchestrator) ProcessBatch(ctx context.Context, projectID uuid.UUID) (BatchSummary, error) {
	start := time.Now()
	summary := BatchSummary{ProjectID: projectID}
	log := o.logger.With("project_id", projectID, "batch_id", common.BatchIDFromContext(ctx))

	pending, err := o.subs.ListPending(ctx, projectID)
	if err != nil {
		log.Error("pipeline.batch.select_failed", "err", err)
		metrics.BatchesTotal.WithLabelValues("select_failed").Inc()
		return summary, fmt.Errorf("select pending submissions: %w", err)
	}
	summary.Selected = len(pending)
	if len(pending) == 0 {
		log.Info("pipeline.batch.empty")
		metrics.BatchesTotal.WithLabelValues("empty").Inc()
		return summary, nil
	}
	log.Info("pipeline.batch.start", "pending", len(pending), "concurrency", o.concurrency)

	var mu sync.Mutex
	record := func(r result) {
		mu.Lock()
		defer mu.Unlock()
		switch r.outcome {
		case constants.SubmissionCompleted:
			summary.Completed++
			summary.SlidesStored += r.slides
		case constants.SubmissionFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, SubmissionFailure{
				SubmissionID: r.submissionID,
				Stage:        r.stage,
				Error:        r.err,
			})
		default:
			summary.Skipped++
		}
		if r.outcome.IsTerminal() {
			metrics.SubmissionsProcessed.WithLabelValues(string(r.outcome)).Inc()
		}
	}

	if o.concurrency <= 1 {
		for _, sub := range pending {
			if ctx.Err() != nil {
				log.Warn("pipeline.batch.cancelled", "err", ctx.Err())
				break
			}
			record(o.processOne(ctx, sub))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.concurrency)
		for _, sub := range pending {
			if ctx.Err() != nil {
				log.Warn("pipeline.batch.cancelled", "err", ctx.Err())
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				record(o.processOne(ctx, sub))
				return nil
			})
		}
		_ = g.Wait()
	}

	// Marking the project active must survive a cancelled batch.
	if err := o.projects.SetStatus(context.WithoutCancel(ctx), projectID, constants.ProjectActive); err != nil {
		log.Error("pipeline.batch.project_status_failed", "err", err)
	}

	summary.Duration = time.Since(start)
	metrics.BatchesTotal.WithLabelValues("ok").Inc()
	log.Info("pipeline.batch.done",
		"selected", summary.Selected,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"slides", summary.SlidesStored,
		"elapsed_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}
