//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/db/migrate"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pipeline_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	logger := quietLogger()
	drv, pool, err := Open(ctx, Config{
		DSN:         fmt.Sprintf("postgres://test:test@%s:%s/pipeline_test?sslmode=disable", host, port.Port()),
		MaxConns:    8,
		MinConns:    1,
		DialTimeout: 5 * time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { Close(drv, pool, logger) })
	require.NoError(t, migrate.Create(ctx, drv))
	require.NoError(t, HealthCheck(ctx, drv, pool, time.Second, logger))

	return &fixture{
		projects:    NewProjectRepository(drv, logger),
		submissions: NewSubmissionRepository(drv, logger),
		jobs:        NewJobRepository(drv, logger),
		slides:      NewSlideRepository(drv, logger),
	}
}

func TestPostgres_ConcurrentClaimHasOneWinner(t *testing.T) {
	f := newPostgresFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "file-1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.submissions.Claim(context.Background(), s.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestPostgres_StoreAllAndReset(t *testing.T) {
	ctx := context.Background()
	f := newPostgresFixture(t)
	p := f.project(t)
	s := f.submission(t, p.ID, "file-1")

	text := "slide text"
	n, err := f.slides.StoreAll(ctx, s.ID, p.ID, []entity.PageRecord{
		{
			SlideNumber:     1,
			TextContent:     &text,
			TablesData:      []entity.TableData{{Markdown: "| a |\n| --- |\n| 1 |", CSV: "a\n1\n"}},
			ElementCounts:   entity.ElementCounts{TextBlocks: 1, Tables: 1},
			ComplexityScore: 0.16,
		},
		{SlideNumber: 2, TablesData: []entity.TableData{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := f.slides.ListBySubmission(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "slide text", *got[0].TextContent)
	assert.Equal(t, 1, got[0].ElementCounts.Tables)
	assert.InDelta(t, 0.16, got[0].ComplexityScore, 1e-9)

	require.NoError(t, f.submissions.SetStatus(ctx, s.ID, constants.SubmissionCompleted))
	reset, err := f.submissions.ResetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	count, err := f.slides.CountByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
