package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
	"github.com/joseph-ayodele/submissions-pipeline/internal/repository"
)

func TestProjectSlidesXLSX(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Init(ctx, common.DatabaseConfig{
		SQLiteDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString()),
	}, true, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	projects := repository.NewProjectRepository(db.Driver, logger)
	subs := repository.NewSubmissionRepository(db.Driver, logger)
	slides := repository.NewSlideRepository(db.Driver, logger)
	svc := NewService(projects, subs, slides, logger)

	p, err := projects.Create(ctx, entity.Project{Name: "Finals", DriveFolderID: "f"})
	require.NoError(t, err)
	sub, err := subs.Create(ctx, entity.Submission{ProjectID: p.ID, TeamName: "Rocket", DriveFileID: "d1", DriveFileName: "Rocket.pdf"})
	require.NoError(t, err)
	require.NoError(t, subs.SetStatus(ctx, sub.ID, constants.SubmissionCompleted))

	text := "Our plan"
	_, err = slides.StoreAll(ctx, sub.ID, p.ID, []entity.PageRecord{
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

	data, err := svc.ProjectSlidesXLSX(ctx, p.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSubmissions, SheetSlides}, f.GetSheetList())

	subRows, err := f.GetRows(SheetSubmissions)
	require.NoError(t, err)
	require.Len(t, subRows, 2)
	assert.Equal(t, "Rocket", subRows[1][0])
	assert.Equal(t, "completed", subRows[1][3])
	assert.Equal(t, "2", subRows[1][4])

	slideRows, err := f.GetRows(SheetSlides)
	require.NoError(t, err)
	require.Len(t, slideRows, 3)
	assert.Equal(t, "Our plan", slideRows[1][2])
	assert.Contains(t, slideRows[1][3], "| a |")
	assert.Equal(t, "0.16", slideRows[1][8])

	_, err = svc.ProjectSlidesXLSX(ctx, uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestClip(t *testing.T) {
	long := bytes.Repeat([]byte("x"), maxCellText+10)
	assert.Len(t, []rune(clip(string(long))), maxCellText)
	assert.Equal(t, "short", clip("short"))
}
