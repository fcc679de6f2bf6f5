package processing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/async"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
	"github.com/joseph-ayodele/submissions-pipeline/internal/ingest"
	"github.com/joseph-ayodele/submissions-pipeline/internal/repository"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) bool { return true }

type fakeScanner struct {
	calls int
}

func (f *fakeScanner) ScanProject(_ context.Context, projectID uuid.UUID) (ingest.ScanResult, error) {
	f.calls++
	return ingest.ScanResult{ProjectID: projectID, Listed: 1, Created: 1}, nil
}

type fixture struct {
	svc      *Service
	queue    *fakeQueue
	projects repository.ProjectRepository
	subs     repository.SubmissionRepository
	jobs     repository.JobRepository
	slides   repository.SlideRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Init(context.Background(), common.DatabaseConfig{
		SQLiteDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString()),
	}, true, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	f := &fixture{
		queue:    &fakeQueue{},
		projects: repository.NewProjectRepository(db.Driver, logger),
		subs:     repository.NewSubmissionRepository(db.Driver, logger),
		jobs:     repository.NewJobRepository(db.Driver, logger),
		slides:   repository.NewSlideRepository(db.Driver, logger),
	}
	f.svc = NewService(f.projects, f.subs, f.jobs, f.slides, &fakeScanner{}, f.queue, logger)
	return f
}

func (f *fixture) project(t *testing.T) *entity.Project {
	t.Helper()
	p, err := f.svc.CreateProject(context.Background(), CreateProjectRequest{
		Name:           "Finals",
		DriveFolderURL: "https://drive.google.com/drive/folders/folder1",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) submission(t *testing.T, projectID uuid.UUID, name string) *entity.Submission {
	t.Helper()
	ctx := context.Background()
	s, err := f.subs.Create(ctx, entity.Submission{ProjectID: projectID, TeamName: name, DriveFileID: "id-" + name, DriveFileName: name + ".pdf"})
	require.NoError(t, err)
	_, err = f.jobs.Create(ctx, s.ID, projectID, constants.JobTypeFetch, constants.DefaultMaxRetries)
	require.NoError(t, err)
	_, err = f.jobs.Create(ctx, s.ID, projectID, constants.JobTypeExtract, 0)
	require.NoError(t, err)
	return s
}

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	assert.Equal(t, "folder1", p.DriveFolderID)
	assert.Equal(t, string(constants.ProjectDraft), p.Status)

	_, err := f.svc.CreateProject(context.Background(), CreateProjectRequest{Name: "x", DriveFolderURL: "https://example.com/folder"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.svc.CreateProject(context.Background(), CreateProjectRequest{DriveFolderURL: "https://drive.google.com/drive/folders/f"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.svc.CreateProject(context.Background(), CreateProjectRequest{
		Name:           strings.Repeat("n", maxProjectName+1),
		DriveFolderURL: "https://drive.google.com/drive/folders/f",
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "name must be at most 200 characters")
}

func TestStartProcessing(t *testing.T) {
	ctx := context.Background()

	t.Run("queues pending submissions", func(t *testing.T) {
		f := newFixture(t)
		p := f.project(t)
		f.submission(t, p.ID, "a")
		f.submission(t, p.ID, "b")
		done := f.submission(t, p.ID, "c")
		require.NoError(t, f.subs.SetStatus(ctx, done.ID, constants.SubmissionCompleted))

		res, err := f.svc.StartProcessing(ctx, p.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 2, res.Queued)
		assert.Equal(t, p.ID, res.ProjectID)
		assert.Equal(t, "Processing started for 2 submissions", res.Message)
		require.Len(t, f.queue.jobs, 1)
		assert.Equal(t, p.ID, f.queue.jobs[0].ProjectID)
	})

	t.Run("nothing pending", func(t *testing.T) {
		f := newFixture(t)
		p := f.project(t)
		res, err := f.svc.StartProcessing(ctx, p.ID.String())
		require.NoError(t, err)
		assert.Zero(t, res.Queued)
		assert.Empty(t, f.queue.jobs)
	})

	t.Run("queue full", func(t *testing.T) {
		f := newFixture(t)
		f.queue.err = async.ErrQueueFull
		p := f.project(t)
		f.submission(t, p.ID, "a")
		_, err := f.svc.StartProcessing(ctx, p.ID.String())
		assert.Equal(t, codes.Unavailable, status.Code(err))
	})

	t.Run("bad ids", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.StartProcessing(ctx, "not-a-uuid")
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Contains(t, status.Convert(err).Message(), "project_id")
		assert.Contains(t, status.Convert(err).Message(), "must be a valid UUID")
		_, err = f.svc.StartProcessing(ctx, uuid.NewString())
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestResetProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	a := f.submission(t, p.ID, "a")
	b := f.submission(t, p.ID, "b")
	require.NoError(t, f.subs.SetStatus(ctx, a.ID, constants.SubmissionCompleted))
	require.NoError(t, f.subs.SetStatus(ctx, b.ID, constants.SubmissionFailed))
	text := "hello"
	_, err := f.slides.StoreAll(ctx, a.ID, p.ID, []entity.PageRecord{{SlideNumber: 1, TextContent: &text, TablesData: []entity.TableData{}}})
	require.NoError(t, err)

	res, err := f.svc.ResetProject(ctx, p.ID.String(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reset)
	assert.Nil(t, res.Started)
	assert.Empty(t, f.queue.jobs)

	n, err := f.slides.CountByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	pending, err := f.subs.CountByStatus(ctx, p.ID, constants.SubmissionPending)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	res, err = f.svc.ResetProject(ctx, p.ID.String(), true)
	require.NoError(t, err)
	require.NotNil(t, res.Started)
	assert.Equal(t, 2, res.Started.Queued)
	assert.Len(t, f.queue.jobs, 1)
}

func TestRetryFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	retryable := f.submission(t, p.ID, "a")
	exhausted := f.submission(t, p.ID, "b")

	fetchJob := func(subID uuid.UUID) uuid.UUID {
		j, err := f.jobs.FindQueued(ctx, subID, p.ID, constants.JobTypeFetch)
		require.NoError(t, err)
		require.NotNil(t, j)
		return j.ID
	}

	require.NoError(t, f.subs.SetStatus(ctx, retryable.ID, constants.SubmissionFailed))
	_, err := f.jobs.ApplyRetryPolicy(ctx, fetchJob(retryable.ID), "boom")
	require.NoError(t, err)

	require.NoError(t, f.subs.SetStatus(ctx, exhausted.ID, constants.SubmissionFailed))
	jobID := fetchJob(exhausted.ID)
	for i := 0; i <= constants.DefaultMaxRetries; i++ {
		_, err := f.jobs.ApplyRetryPolicy(ctx, jobID, "boom")
		require.NoError(t, err)
	}

	res, err := f.svc.RetryFailed(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Queued)

	got, err := f.subs.GetByID(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.SubmissionFailed), got.ProcessingStatus)
}

func TestProjectStatusAndSlides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.project(t)
	a := f.submission(t, p.ID, "a")
	f.submission(t, p.ID, "b")
	require.NoError(t, f.subs.SetStatus(ctx, a.ID, constants.SubmissionCompleted))
	text := "intro"
	_, err := f.slides.StoreAll(ctx, a.ID, p.ID, []entity.PageRecord{
		{SlideNumber: 1, TextContent: &text, TablesData: []entity.TableData{}},
		{SlideNumber: 2, TablesData: []entity.TableData{}},
	})
	require.NoError(t, err)

	st, err := f.svc.ProjectStatus(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Counts[string(constants.SubmissionCompleted)])
	assert.Equal(t, 1, st.Counts[string(constants.SubmissionPending)])
	assert.Equal(t, 2, st.Slides)
	require.Len(t, st.Submissions, 2)
	for _, v := range st.Submissions {
		assert.Len(t, v.Jobs, 2)
	}

	slides, err := f.svc.ListSlides(ctx, a.ID.String())
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, 1, slides[0].SlideNumber)

	_, err = f.svc.ListSlides(ctx, uuid.NewString())
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestScanProject(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	res, err := f.svc.ScanProject(context.Background(), p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}
