package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
	"github.com/joseph-ayodele/submissions-pipeline/internal/repository"
)

const (
	SheetSubmissions = "Submissions"
	SheetSlides      = "Slides"

	// cells are capped so a huge page does not blow the sheet past excel's limit
	maxCellText = 32000
)

// Service produces XLSX workbooks of a project's stored slides.
type Service struct {
	projects repository.ProjectRepository
	subs     repository.SubmissionRepository
	slides   repository.SlideRepository
	logger   *slog.Logger
}

func NewService(projects repository.ProjectRepository, subs repository.SubmissionRepository, slides repository.SlideRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{projects: projects, subs: subs, slides: slides, logger: logger}
}

// ProjectSlidesXLSX returns a workbook with one row per submission on the
// Submissions sheet and one row per stored slide on the Slides sheet.
func (s *Service) ProjectSlidesXLSX(ctx context.Context, projectID uuid.UUID) ([]byte, error) {
	start := time.Now()

	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	subs, err := s.subs.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	slides, err := s.slides.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("query slides: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetSubmissions); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetSlides); err != nil {
		return nil, err
	}

	perSub := make(map[uuid.UUID]int, len(subs))
	for _, sl := range slides {
		perSub[sl.SubmissionID]++
	}

	teams := make(map[uuid.UUID]string, len(subs))
	if err := writeRow(f, SheetSubmissions, 1, "Team", "File", "Drive File ID", "Status", "Slides", "Updated"); err != nil {
		return nil, err
	}
	for i, sub := range subs {
		teams[sub.ID] = sub.TeamName
		if err := writeRow(f, SheetSubmissions, i+2,
			sub.TeamName,
			sub.DriveFileName,
			sub.DriveFileID,
			sub.ProcessingStatus,
			perSub[sub.ID],
			sub.UpdatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, SheetSlides, 1,
		"Team", "Slide", "Text", "Tables", "Image Text",
		"Text Blocks", "Table Count", "Pictures", "Complexity",
	); err != nil {
		return nil, err
	}
	for i, sl := range slides {
		if err := writeRow(f, SheetSlides, i+2,
			teams[sl.SubmissionID],
			sl.SlideNumber,
			clip(deref(sl.TextContent)),
			clip(tablesMarkdown(sl.TablesData)),
			clip(deref(sl.ImagesOCRText)),
			sl.ElementCounts.TextBlocks,
			sl.ElementCounts.Tables,
			sl.ElementCounts.Pictures,
			sl.ComplexityScore,
		); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(SheetSubmissions, "A", "B", 28)
	_ = f.SetColWidth(SheetSubmissions, "C", "C", 34)
	_ = f.SetColWidth(SheetSubmissions, "F", "F", 22)
	_ = f.SetColWidth(SheetSlides, "A", "A", 24)
	_ = f.SetColWidth(SheetSlides, "C", "E", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"project_id", projectID.String(),
		"submissions", len(subs),
		"slides", len(slides),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func tablesMarkdown(tables []entity.TableData) string {
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		if t.Markdown != "" {
			parts = append(parts, t.Markdown)
		}
	}
	return strings.Join(parts, "\n\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func clip(s string) string {
	if len(s) <= maxCellText {
		return s
	}
	return s[:maxCellText-1] + "…"
}
