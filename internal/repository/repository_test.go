package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/db/migrate"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

type fixture struct {
	projects    ProjectRepository
	submissions SubmissionRepository
	jobs        JobRepository
	slides      SlideRepository
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := quietLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	drv, err := OpenSQLite(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	require.NoError(t, migrate.Create(ctx, drv))

	return &fixture{
		projects:    NewProjectRepository(drv, logger),
		submissions: NewSubmissionRepository(drv, logger),
		jobs:        NewJobRepository(drv, logger),
		slides:      NewSlideRepository(drv, logger),
	}
}

func (f *fixture) project(t *testing.T) *entity.Project {
	t.Helper()
	p, err := f.projects.Create(context.Background(), entity.Project{Name: "Hack Day", DriveFolderID: "folder-1"})
	require.NoError(t, err)
	return p
}

func (f *fixture) submission(t *testing.T, projectID uuid.UUID, fileID string) *entity.Submission {
	t.Helper()
	s, err := f.submissions.Create(context.Background(), entity.Submission{
		ProjectID:   projectID,
		TeamName:    "team-" + fileID,
		DriveFileID: fileID,
	})
	require.NoError(t, err)
	return s
}

func pages(n int) []entity.PageRecord {
	out := make([]entity.PageRecord, n)
	for i := range out {
		text := fmt.Sprintf("page %d", i+1)
		out[i] = entity.PageRecord{
			SlideNumber:     i + 1,
			TextContent:     &text,
			ElementCounts:   entity.ElementCounts{TextBlocks: 1},
			ComplexityScore: 0.04,
		}
	}
	return out
}

func TestRegisterCreatesSubmissionWithJobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)

	s, err := f.submissions.Register(ctx, entity.Submission{ProjectID: p.ID, TeamName: "Rocket", DriveFileID: "d1"},
		JobSpec{Type: constants.JobTypeFetch, MaxRetries: 2},
		JobSpec{Type: constants.JobTypeExtract},
	)
	require.NoError(t, err)
	assert.Equal(t, string(constants.SubmissionPending), s.ProcessingStatus)

	jobs, err := f.jobs.ListBySubmission(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestRegisterIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)

	_, err := f.submissions.Register(ctx, entity.Submission{ProjectID: p.ID, TeamName: "Rocket", DriveFileID: "d1"},
		JobSpec{Type: constants.JobTypeFetch, MaxRetries: 2},
		JobSpec{Type: constants.JobTypeExtract, MaxRetries: -1},
	)
	require.Error(t, err)

	_, err = f.submissions.GetByDriveFileID(ctx, p.ID, "d1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	all, err := f.jobs.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmissionClaimIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")

	ok, err := f.submissions.Claim(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.submissions.Claim(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must not win")

	got, err := f.submissions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.SubmissionProcessing), got.ProcessingStatus)
}

func TestListPendingOnlyReturnsPendingOfProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	other := f.project(t)
	a := f.submission(t, p.ID, "a")
	b := f.submission(t, p.ID, "b")
	f.submission(t, other.ID, "c")
	require.NoError(t, f.submissions.SetStatus(ctx, b.ID, constants.SubmissionCompleted))

	pending, err := f.submissions.ListPending(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	n, err := f.submissions.CountByStatus(ctx, p.ID, constants.SubmissionPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSetStatusUnknownSubmission(t *testing.T) {
	f := newFixture(t)
	err := f.submissions.SetStatus(context.Background(), uuid.New(), constants.SubmissionFailed)
	assert.True(t, IsNotFound(err))
}

func TestFindQueuedReturnsNilWhenMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")

	job, err := f.jobs.FindQueued(ctx, s.ID, p.ID, constants.JobTypeFetch)
	require.NoError(t, err)
	assert.Nil(t, job)

	created, err := f.jobs.Create(ctx, s.ID, p.ID, constants.JobTypeFetch, 2)
	require.NoError(t, err)

	job, err = f.jobs.FindQueued(ctx, s.ID, p.ID, constants.JobTypeFetch)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, created.ID, job.ID)

	require.NoError(t, f.jobs.MarkRunning(ctx, job.ID))
	job, err = f.jobs.FindQueued(ctx, s.ID, p.ID, constants.JobTypeFetch)
	require.NoError(t, err)
	assert.Nil(t, job, "running jobs are not picked up")
}

func TestJobTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")
	job, err := f.jobs.Create(ctx, s.ID, p.ID, constants.JobTypeExtract, 0)
	require.NoError(t, err)

	require.NoError(t, f.jobs.MarkRunning(ctx, job.ID))
	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusRunning), got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, f.jobs.MarkFailed(ctx, job.ID, "engine returned no pages"))
	got, err = f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "engine returned no pages", *got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)
}

func TestApplyRetryPolicyIsBounded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")
	job, err := f.jobs.Create(ctx, s.ID, p.ID, constants.JobTypeFetch, 2)
	require.NoError(t, err)

	want := []RetryOutcome{
		{Status: constants.JobStatusQueued, RetryCount: 1, MaxRetries: 2},
		{Status: constants.JobStatusQueued, RetryCount: 2, MaxRetries: 2},
		{Status: constants.JobStatusFailed, RetryCount: 2, MaxRetries: 2},
	}
	for i, w := range want {
		require.NoError(t, f.jobs.MarkRunning(ctx, job.ID))
		out, err := f.jobs.ApplyRetryPolicy(ctx, job.ID, "Failed to stream PDF from Drive (file_id=f1)")
		require.NoError(t, err)
		assert.Equal(t, w, out, "attempt %d", i+1)
	}

	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), got.Status)
	assert.LessOrEqual(t, got.RetryCount, got.MaxRetries)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "file_id=f1")
}

func TestApplyRetryPolicyZeroRetriesFailsImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")
	job, err := f.jobs.Create(ctx, s.ID, p.ID, constants.JobTypeFetch, 0)
	require.NoError(t, err)

	out, err := f.jobs.ApplyRetryPolicy(ctx, job.ID, "boom")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, out.Status)
	assert.Equal(t, 0, out.RetryCount)
}

func TestStoreAllWritesContiguousSlides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")

	recs := pages(3)
	recs[1].TablesData = []entity.TableData{{Markdown: "| a |\n| --- |\n| 1 |\n", CSV: "a\n1\n"}, {Markdown: "", CSV: ""}}
	recs[1].ElementCounts.Tables = 2

	n, err := f.slides.StoreAll(ctx, s.ID, p.ID, recs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := f.slides.ListBySubmission(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, sl := range got {
		assert.Equal(t, i+1, sl.SlideNumber)
		assert.Equal(t, p.ID, sl.ProjectID)
	}
	assert.Nil(t, got[0].TablesData)
	assert.Equal(t, recs[1].TablesData, got[1].TablesData)
	assert.Equal(t, 2, got[1].ElementCounts.Tables)
	require.NotNil(t, got[2].TextContent)
	assert.Equal(t, "page 3", *got[2].TextContent)
	assert.Nil(t, got[2].ImagesOCRText)
}

func TestStoreAllReplacesPreviousSlides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")

	_, err := f.slides.StoreAll(ctx, s.ID, p.ID, pages(5))
	require.NoError(t, err)
	_, err = f.slides.StoreAll(ctx, s.ID, p.ID, pages(2))
	require.NoError(t, err)

	n, err := f.slides.CountBySubmission(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreAllEmptyIsFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")

	_, err := f.slides.StoreAll(ctx, s.ID, p.ID, nil)
	assert.ErrorIs(t, err, ErrNoRowsWritten)
}

func TestStoreAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "f1")
	_, err := f.slides.StoreAll(ctx, s.ID, p.ID, pages(2))
	require.NoError(t, err)

	// duplicate slide numbers violate the unique index, so nothing may land
	// and the previous slides must survive the rollback
	bad := pages(3)
	bad[2].SlideNumber = 1
	_, err = f.slides.StoreAll(ctx, s.ID, p.ID, bad)
	require.Error(t, err)

	got, err := f.slides.ListBySubmission(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestResetProjectRestoresPendingAndDropsSlides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)

	for i := 0; i < 5; i++ {
		s := f.submission(t, p.ID, fmt.Sprintf("f%d", i))
		_, err := f.slides.StoreAll(ctx, s.ID, p.ID, pages(8))
		require.NoError(t, err)
		require.NoError(t, f.submissions.SetStatus(ctx, s.ID, constants.SubmissionCompleted))
	}
	total, err := f.slides.CountByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 40, total)

	for round := 0; round < 2; round++ {
		n, err := f.submissions.ResetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		pending, err := f.submissions.CountByStatus(ctx, p.ID, constants.SubmissionPending)
		require.NoError(t, err)
		assert.Equal(t, 5, pending, "round %d", round)

		total, err = f.slides.CountByProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Zero(t, total, "round %d", round)
	}
}

func TestRequeueRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)

	retryable := f.submission(t, p.ID, "retry")
	exhausted := f.submission(t, p.ID, "done")

	j1, err := f.jobs.Create(ctx, retryable.ID, p.ID, constants.JobTypeFetch, 2)
	require.NoError(t, err)
	_, err = f.jobs.ApplyRetryPolicy(ctx, j1.ID, "boom")
	require.NoError(t, err)

	j2, err := f.jobs.Create(ctx, exhausted.ID, p.ID, constants.JobTypeFetch, 0)
	require.NoError(t, err)
	_, err = f.jobs.ApplyRetryPolicy(ctx, j2.ID, "boom")
	require.NoError(t, err)

	require.NoError(t, f.submissions.SetStatus(ctx, retryable.ID, constants.SubmissionFailed))
	require.NoError(t, f.submissions.SetStatus(ctx, exhausted.ID, constants.SubmissionFailed))

	n, err := f.submissions.RequeueRetryable(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.submissions.GetByID(ctx, retryable.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.SubmissionPending), got.ProcessingStatus)
	got, err = f.submissions.GetByID(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.SubmissionFailed), got.ProcessingStatus)
}

func TestProjectStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	assert.Equal(t, string(constants.ProjectDraft), p.Status)

	require.NoError(t, f.projects.SetStatus(ctx, p.ID, constants.ProjectActive))
	got, err := f.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.ProjectActive), got.Status)

	ok, err := f.projects.Exists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
