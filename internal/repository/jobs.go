package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

const colJobID = "job_id"

var jobColumns = []string{
	"job_id", "submission_id", "project_id", "job_type", "status", "retry_count",
	"max_retries", "error_message", "started_at", "completed_at", "created_at",
}

// RetryOutcome is the job state written by ApplyRetryPolicy.
type RetryOutcome struct {
	Status     constants.JobStatus
	RetryCount int
	MaxRetries int
}

type JobRepository interface {
	Create(ctx context.Context, submissionID, projectID uuid.UUID, jobType constants.JobType, maxRetries int) (*entity.ProcessingJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ProcessingJob, error)
	// FindQueued returns the queued job for a submission and stage, or nil
	// when there is none.
	FindQueued(ctx context.Context, submissionID, projectID uuid.UUID, jobType constants.JobType) (*entity.ProcessingJob, error)
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]entity.ProcessingJob, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]entity.ProcessingJob, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	// ApplyRetryPolicy re-queues the job while retries remain and fails it
	// otherwise.
	ApplyRetryPolicy(ctx context.Context, id uuid.UUID, message string) (RetryOutcome, error)
}

type jobRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewJobRepository(drv *entsql.Driver, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{drv: drv, log: log}
}

func (r *jobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

// JobSpec describes a job to create alongside a submission.
type JobSpec struct {
	Type       constants.JobType
	MaxRetries int
}

func newQueuedJob(submissionID, projectID uuid.UUID, spec JobSpec) (entity.ProcessingJob, error) {
	if spec.MaxRetries < 0 {
		return entity.ProcessingJob{}, common.NewAppError("INVALID_JOB", "max_retries must be >= 0", common.ErrInvalidInput)
	}
	return entity.ProcessingJob{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		ProjectID:    projectID,
		JobType:      string(spec.Type),
		Status:       string(constants.JobStatusQueued),
		MaxRetries:   spec.MaxRetries,
		CreatedAt:    nowUTC(),
	}, nil
}

func insertJob(b *entsql.DialectBuilder, job entity.ProcessingJob) *entsql.InsertBuilder {
	return b.Insert(tableJobs).
		Columns("job_id", "submission_id", "project_id", "job_type", "status", "retry_count", "max_retries", "created_at").
		Values(job.ID, job.SubmissionID, job.ProjectID, job.JobType, job.Status, 0, job.MaxRetries, job.CreatedAt)
}

func (r *jobRepo) Create(ctx context.Context, submissionID, projectID uuid.UUID, jobType constants.JobType, maxRetries int) (*entity.ProcessingJob, error) {
	job, err := newQueuedJob(submissionID, projectID, JobSpec{Type: jobType, MaxRetries: maxRetries})
	if err != nil {
		return nil, err
	}
	if _, err := exec(ctx, r.drv, insertJob(r.builder(), job)); err != nil {
		r.log.Error("processing_job create failed", "submission_id", submissionID, "job_type", jobType, "err", err)
		return nil, err
	}
	r.log.Info("processing_job created", "job_id", job.ID, "submission_id", submissionID, "job_type", jobType)
	return &job, nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ProcessingJob, error) {
	sel := r.builder().Select(jobColumns...).
		From(r.builder().Table(tableJobs)).
		Where(entsql.EQ(colJobID, id)).
		Limit(1)
	jobs, err := r.list(ctx, r.drv, sel)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	return &jobs[0], nil
}

func (r *jobRepo) FindQueued(ctx context.Context, submissionID, projectID uuid.UUID, jobType constants.JobType) (*entity.ProcessingJob, error) {
	sel := r.builder().Select(jobColumns...).
		From(r.builder().Table(tableJobs)).
		Where(entsql.And(
			entsql.EQ(colSubmissionID, submissionID),
			entsql.EQ(colProjectID, projectID),
			entsql.EQ("job_type", string(jobType)),
			entsql.EQ("status", string(constants.JobStatusQueued)),
		)).
		Limit(1)
	jobs, err := r.list(ctx, r.drv, sel)
	if err != nil {
		r.log.Error("processing_job lookup failed", "submission_id", submissionID, "job_type", jobType, "err", err)
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

func (r *jobRepo) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]entity.ProcessingJob, error) {
	sel := r.builder().Select(jobColumns...).
		From(r.builder().Table(tableJobs)).
		Where(entsql.EQ(colSubmissionID, submissionID)).
		OrderBy("created_at", "job_type")
	return r.list(ctx, r.drv, sel)
}

func (r *jobRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]entity.ProcessingJob, error) {
	sel := r.builder().Select(jobColumns...).
		From(r.builder().Table(tableJobs)).
		Where(entsql.EQ(colProjectID, projectID)).
		OrderBy(colSubmissionID, "job_type")
	return r.list(ctx, r.drv, sel)
}

func (r *jobRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	upd := r.builder().Update(tableJobs).
		Set("status", string(constants.JobStatusRunning)).
		Set("started_at", nowUTC()).
		Where(entsql.EQ(colJobID, id))
	if err := r.update(ctx, id, upd); err != nil {
		r.log.Error("processing_job start failed", "job_id", id, "err", err)
		return err
	}
	r.log.Info("processing_job running", "job_id", id)
	return nil
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	upd := r.builder().Update(tableJobs).
		Set("status", string(constants.JobStatusCompleted)).
		Set("completed_at", nowUTC()).
		Where(entsql.EQ(colJobID, id))
	if err := r.update(ctx, id, upd); err != nil {
		r.log.Error("processing_job finish(completed) failed", "job_id", id, "err", err)
		return err
	}
	r.log.Info("processing_job finished (completed)", "job_id", id)
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	upd := r.builder().Update(tableJobs).
		Set("status", string(constants.JobStatusFailed)).
		Set("completed_at", nowUTC()).
		Set("error_message", message).
		Where(entsql.EQ(colJobID, id))
	if err := r.update(ctx, id, upd); err != nil {
		r.log.Error("processing_job finish(failed) failed", "job_id", id, "err", err)
		return err
	}
	r.log.Warn("processing_job finished (failed)", "job_id", id, "error", message)
	return nil
}

func (r *jobRepo) ApplyRetryPolicy(ctx context.Context, id uuid.UUID, message string) (RetryOutcome, error) {
	var out RetryOutcome
	err := withTx(ctx, r.drv, func(tx dialect.Tx) error {
		b := r.builder()
		sel := b.Select("retry_count", "max_retries").
			From(b.Table(tableJobs)).
			Where(entsql.EQ(colJobID, id))
		found := false
		err := query(ctx, tx, sel, func(rows *entsql.Rows) error {
			found = true
			return rows.Scan(&out.RetryCount, &out.MaxRetries)
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
		}

		upd := b.Update(tableJobs).Set("error_message", message)
		if out.RetryCount < out.MaxRetries {
			out.RetryCount++
			out.Status = constants.JobStatusQueued
			upd.Set("status", string(out.Status)).
				Set("retry_count", out.RetryCount).
				SetNull("completed_at")
		} else {
			out.Status = constants.JobStatusFailed
			upd.Set("status", string(out.Status)).
				Set("completed_at", nowUTC())
		}
		upd.Where(entsql.EQ(colJobID, id))
		n, err := exec(ctx, tx, upd)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("job %s: %w", id, ErrNoRowsWritten)
		}
		return nil
	})
	if err != nil {
		r.log.Error("processing_job retry policy failed", "job_id", id, "err", err)
		return RetryOutcome{}, err
	}
	r.log.Warn("processing_job fetch failure recorded",
		"job_id", id,
		"status", out.Status,
		"retry_count", out.RetryCount,
		"max_retries", out.MaxRetries,
	)
	return out, nil
}

func (r *jobRepo) update(ctx context.Context, id uuid.UUID, upd *entsql.UpdateBuilder) error {
	n, err := exec(ctx, r.drv, upd)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *jobRepo) list(ctx context.Context, q dialect.ExecQuerier, sel *entsql.Selector) ([]entity.ProcessingJob, error) {
	var out []entity.ProcessingJob
	err := query(ctx, q, sel, func(rows *entsql.Rows) error {
		var (
			j         entity.ProcessingJob
			msg       stdsql.NullString
			started   stdsql.NullTime
			completed stdsql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.SubmissionID, &j.ProjectID, &j.JobType, &j.Status,
			&j.RetryCount, &j.MaxRetries, &msg, &started, &completed, &j.CreatedAt); err != nil {
			return err
		}
		j.ErrorMessage = stringPtr(msg)
		j.StartedAt = timePtr(started)
		j.CompletedAt = timePtr(completed)
		out = append(out, j)
		return nil
	})
	return out, err
}
