package repository

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

const (
	tableProjects       = "projects"
	tableSubmissions    = "submissions"
	tableJobs           = "processing_jobs"
	tableSlides         = "submission_slides"
	colSubmissionID     = "submission_id"
	colProjectID        = "project_id"
	colProcessingStatus = "processing_status"
	colUpdatedAt        = "updated_at"
)

var submissionColumns = []string{
	"submission_id", "project_id", "team_name", "drive_file_id", "drive_file_name",
	"file_size", "processing_status", "created_at", "updated_at",
}

type SubmissionRepository interface {
	Create(ctx context.Context, s entity.Submission) (*entity.Submission, error)
	// Register creates a submission together with its queued jobs in one
	// transaction.
	Register(ctx context.Context, s entity.Submission, jobs ...JobSpec) (*entity.Submission, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error)
	GetByDriveFileID(ctx context.Context, projectID uuid.UUID, driveFileID string) (*entity.Submission, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]entity.Submission, error)
	ListPending(ctx context.Context, projectID uuid.UUID) ([]entity.Submission, error)
	CountByStatus(ctx context.Context, projectID uuid.UUID, status constants.SubmissionStatus) (int, error)
	// Claim moves a submission from pending to processing. It reports false
	// when the submission was not pending any more.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.SubmissionStatus) error
	// ResetProject sets every submission of a project back to pending and
	// deletes its slides, one transaction per submission.
	ResetProject(ctx context.Context, projectID uuid.UUID) (int, error)
	// RequeueRetryable moves failed submissions whose fetch job is still
	// queued back to pending.
	RequeueRetryable(ctx context.Context, projectID uuid.UUID) (int, error)
}

type submissionRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewSubmissionRepository(drv *entsql.Driver, log *slog.Logger) SubmissionRepository {
	if log == nil {
		log = slog.Default()
	}
	return &submissionRepo{drv: drv, log: log}
}

func (r *submissionRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func prepareSubmission(s entity.Submission) entity.Submission {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.ProcessingStatus == "" {
		s.ProcessingStatus = string(constants.SubmissionPending)
	}
	now := nowUTC()
	s.CreatedAt, s.UpdatedAt = now, now
	return s
}

func (r *submissionRepo) insert(s entity.Submission) *entsql.InsertBuilder {
	return r.builder().Insert(tableSubmissions).
		Columns(submissionColumns...).
		Values(s.ID, s.ProjectID, s.TeamName, s.DriveFileID, s.DriveFileName,
			nullable(s.FileSize), s.ProcessingStatus, s.CreatedAt, s.UpdatedAt)
}

func (r *submissionRepo) Create(ctx context.Context, s entity.Submission) (*entity.Submission, error) {
	s = prepareSubmission(s)
	if _, err := exec(ctx, r.drv, r.insert(s)); err != nil {
		r.log.Error("submission create failed", "project_id", s.ProjectID, "drive_file_id", s.DriveFileID, "err", err)
		return nil, err
	}
	r.log.Info("submission created", "submission_id", s.ID, "project_id", s.ProjectID, "team", s.TeamName)
	return &s, nil
}

func (r *submissionRepo) Register(ctx context.Context, s entity.Submission, jobs ...JobSpec) (*entity.Submission, error) {
	s = prepareSubmission(s)
	err := withTx(ctx, r.drv, func(tx dialect.Tx) error {
		if _, err := exec(ctx, tx, r.insert(s)); err != nil {
			return err
		}
		for _, spec := range jobs {
			job, err := newQueuedJob(s.ID, s.ProjectID, spec)
			if err != nil {
				return err
			}
			if _, err := exec(ctx, tx, insertJob(r.builder(), job)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("submission register failed", "project_id", s.ProjectID, "drive_file_id", s.DriveFileID, "err", err)
		return nil, err
	}
	r.log.Info("submission registered", "submission_id", s.ID, "project_id", s.ProjectID, "team", s.TeamName, "jobs", len(jobs))
	return &s, nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error) {
	sel := r.builder().Select(submissionColumns...).
		From(r.builder().Table(tableSubmissions)).
		Where(entsql.EQ(colSubmissionID, id)).
		Limit(1)
	return r.one(ctx, sel)
}

func (r *submissionRepo) GetByDriveFileID(ctx context.Context, projectID uuid.UUID, driveFileID string) (*entity.Submission, error) {
	sel := r.builder().Select(submissionColumns...).
		From(r.builder().Table(tableSubmissions)).
		Where(entsql.And(
			entsql.EQ(colProjectID, projectID),
			entsql.EQ("drive_file_id", driveFileID),
		)).
		Limit(1)
	return r.one(ctx, sel)
}

func (r *submissionRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]entity.Submission, error) {
	sel := r.builder().Select(submissionColumns...).
		From(r.builder().Table(tableSubmissions)).
		Where(entsql.EQ(colProjectID, projectID)).
		OrderBy("created_at", colSubmissionID)
	return r.list(ctx, r.drv, sel)
}

func (r *submissionRepo) ListPending(ctx context.Context, projectID uuid.UUID) ([]entity.Submission, error) {
	sel := r.builder().Select(submissionColumns...).
		From(r.builder().Table(tableSubmissions)).
		Where(entsql.And(
			entsql.EQ(colProjectID, projectID),
			entsql.EQ(colProcessingStatus, string(constants.SubmissionPending)),
		)).
		OrderBy("created_at", colSubmissionID)
	subs, err := r.list(ctx, r.drv, sel)
	if err != nil {
		r.log.Error("list pending submissions failed", "project_id", projectID, "err", err)
		return nil, err
	}
	return subs, nil
}

func (r *submissionRepo) CountByStatus(ctx context.Context, projectID uuid.UUID, status constants.SubmissionStatus) (int, error) {
	sel := r.builder().Select(entsql.Count("*")).
		From(r.builder().Table(tableSubmissions)).
		Where(entsql.And(
			entsql.EQ(colProjectID, projectID),
			entsql.EQ(colProcessingStatus, string(status)),
		))
	var n int
	err := query(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

func (r *submissionRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	upd := r.builder().Update(tableSubmissions).
		Set(colProcessingStatus, string(constants.SubmissionProcessing)).
		Set(colUpdatedAt, nowUTC()).
		Where(entsql.And(
			entsql.EQ(colSubmissionID, id),
			entsql.EQ(colProcessingStatus, string(constants.SubmissionPending)),
		))
	n, err := exec(ctx, r.drv, upd)
	if err != nil {
		r.log.Error("submission claim failed", "submission_id", id, "err", err)
		return false, err
	}
	return n == 1, nil
}

func (r *submissionRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.SubmissionStatus) error {
	upd := r.builder().Update(tableSubmissions).
		Set(colProcessingStatus, string(status)).
		Set(colUpdatedAt, nowUTC()).
		Where(entsql.EQ(colSubmissionID, id))
	n, err := exec(ctx, r.drv, upd)
	if err != nil {
		r.log.Error("submission status update failed", "submission_id", id, "status", status, "err", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("submission %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *submissionRepo) ResetProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	sel := r.builder().Select(colSubmissionID).
		From(r.builder().Table(tableSubmissions)).
		Where(entsql.EQ(colProjectID, projectID))
	var ids []uuid.UUID
	err := query(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		r.log.Error("reset: list submissions failed", "project_id", projectID, "err", err)
		return 0, err
	}

	reset := 0
	for _, id := range ids {
		err := withTx(ctx, r.drv, func(tx dialect.Tx) error {
			b := r.builder()
			if _, err := exec(ctx, tx, b.Delete(tableSlides).Where(entsql.EQ(colSubmissionID, id))); err != nil {
				return err
			}
			_, err := exec(ctx, tx, b.Update(tableSubmissions).
				Set(colProcessingStatus, string(constants.SubmissionPending)).
				Set(colUpdatedAt, nowUTC()).
				Where(entsql.EQ(colSubmissionID, id)))
			return err
		})
		if err != nil {
			r.log.Error("reset submission failed", "submission_id", id, "project_id", projectID, "err", err)
			return reset, err
		}
		reset++
	}
	r.log.Info("project submissions reset", "project_id", projectID, "submissions", reset)
	return reset, nil
}

func (r *submissionRepo) RequeueRetryable(ctx context.Context, projectID uuid.UUID) (int, error) {
	sel := r.builder().Select(colSubmissionID).
		From(r.builder().Table(tableJobs)).
		Where(entsql.And(
			entsql.EQ(colProjectID, projectID),
			entsql.EQ("job_type", string(constants.JobTypeFetch)),
			entsql.EQ("status", string(constants.JobStatusQueued)),
			entsql.GT("retry_count", 0),
		))
	var ids []any
	err := query(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	// failed fetches never produce slides, so no slide cleanup is needed here
	upd := r.builder().Update(tableSubmissions).
		Set(colProcessingStatus, string(constants.SubmissionPending)).
		Set(colUpdatedAt, nowUTC()).
		Where(entsql.And(
			entsql.EQ(colProjectID, projectID),
			entsql.EQ(colProcessingStatus, string(constants.SubmissionFailed)),
			entsql.In(colSubmissionID, ids...),
		))
	n, err := exec(ctx, r.drv, upd)
	if err != nil {
		r.log.Error("requeue retryable submissions failed", "project_id", projectID, "err", err)
		return 0, err
	}
	r.log.Info("retryable submissions requeued", "project_id", projectID, "submissions", n)
	return int(n), nil
}

func (r *submissionRepo) one(ctx context.Context, sel *entsql.Selector) (*entity.Submission, error) {
	subs, err := r.list(ctx, r.drv, sel)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, common.ErrNotFound
	}
	return &subs[0], nil
}

func (r *submissionRepo) list(ctx context.Context, q dialect.ExecQuerier, sel *entsql.Selector) ([]entity.Submission, error) {
	var out []entity.Submission
	err := query(ctx, q, sel, func(rows *entsql.Rows) error {
		s, err := scanSubmission(rows)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func scanSubmission(rows *entsql.Rows) (entity.Submission, error) {
	var (
		s    entity.Submission
		size stdsql.NullInt64
	)
	err := rows.Scan(&s.ID, &s.ProjectID, &s.TeamName, &s.DriveFileID, &s.DriveFileName,
		&size, &s.ProcessingStatus, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.FileSize = int64Ptr(size)
	return s, nil
}

// IsNotFound reports whether err is a missing-row error from this package.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
