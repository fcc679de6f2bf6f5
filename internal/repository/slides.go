package repository

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

var slideColumns = []string{
	"slide_id", "submission_id", "project_id", "slide_number", "text_content",
	"tables_data", "images_ocr_text", "element_counts", "complexity_score", "created_at",
}

type SlideRepository interface {
	// StoreAll replaces the slides of a submission with records in one
	// transaction. Nothing is visible to readers unless every row is written.
	StoreAll(ctx context.Context, submissionID, projectID uuid.UUID, records []entity.PageRecord) (int, error)
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]entity.Slide, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]entity.Slide, error)
	CountByProject(ctx context.Context, projectID uuid.UUID) (int, error)
	CountBySubmission(ctx context.Context, submissionID uuid.UUID) (int, error)
}

type slideRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewSlideRepository(drv *entsql.Driver, log *slog.Logger) SlideRepository {
	if log == nil {
		log = slog.Default()
	}
	return &slideRepo{drv: drv, log: log}
}

func (r *slideRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *slideRepo) StoreAll(ctx context.Context, submissionID, projectID uuid.UUID, records []entity.PageRecord) (int, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("store slides for %s: %w", submissionID, ErrNoRowsWritten)
	}

	now := nowUTC()
	ins := r.builder().Insert(tableSlides).Columns(slideColumns...)
	for _, rec := range records {
		tables, err := encodeTables(rec.TablesData)
		if err != nil {
			return 0, fmt.Errorf("encode tables for slide %d: %w", rec.SlideNumber, err)
		}
		counts, err := json.Marshal(rec.ElementCounts)
		if err != nil {
			return 0, fmt.Errorf("encode element counts for slide %d: %w", rec.SlideNumber, err)
		}
		ins.Values(uuid.New(), submissionID, projectID, rec.SlideNumber, nullable(rec.TextContent),
			tables, nullable(rec.ImagesOCRText), string(counts), rec.ComplexityScore, now)
	}

	var written int64
	err := withTx(ctx, r.drv, func(tx dialect.Tx) error {
		if _, err := exec(ctx, tx, r.builder().Delete(tableSlides).Where(entsql.EQ(colSubmissionID, submissionID))); err != nil {
			return err
		}
		n, err := exec(ctx, tx, ins)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("store slides for %s: %w", submissionID, ErrNoRowsWritten)
		}
		written = n
		return nil
	})
	if err != nil {
		r.log.Error("slides store failed", "submission_id", submissionID, "records", len(records), "err", err)
		return 0, err
	}
	r.log.Info("slides stored", "submission_id", submissionID, "project_id", projectID, "rows", written)
	return int(written), nil
}

func (r *slideRepo) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]entity.Slide, error) {
	sel := r.builder().Select(slideColumns...).
		From(r.builder().Table(tableSlides)).
		Where(entsql.EQ(colSubmissionID, submissionID)).
		OrderBy("slide_number")
	return r.list(ctx, sel)
}

func (r *slideRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]entity.Slide, error) {
	sel := r.builder().Select(slideColumns...).
		From(r.builder().Table(tableSlides)).
		Where(entsql.EQ(colProjectID, projectID)).
		OrderBy(colSubmissionID, "slide_number")
	return r.list(ctx, sel)
}

func (r *slideRepo) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	return r.count(ctx, entsql.EQ(colProjectID, projectID))
}

func (r *slideRepo) CountBySubmission(ctx context.Context, submissionID uuid.UUID) (int, error) {
	return r.count(ctx, entsql.EQ(colSubmissionID, submissionID))
}

func (r *slideRepo) count(ctx context.Context, p *entsql.Predicate) (int, error) {
	sel := r.builder().Select(entsql.Count("*")).
		From(r.builder().Table(tableSlides)).
		Where(p)
	var n int
	err := query(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

func (r *slideRepo) list(ctx context.Context, sel *entsql.Selector) ([]entity.Slide, error) {
	var out []entity.Slide
	err := query(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			s      entity.Slide
			text   stdsql.NullString
			tables []byte
			ocr    stdsql.NullString
			counts []byte
		)
		if err := rows.Scan(&s.ID, &s.SubmissionID, &s.ProjectID, &s.SlideNumber, &text,
			&tables, &ocr, &counts, &s.ComplexityScore, &s.CreatedAt); err != nil {
			return err
		}
		s.TextContent = stringPtr(text)
		s.ImagesOCRText = stringPtr(ocr)
		if len(tables) > 0 {
			if err := json.Unmarshal(tables, &s.TablesData); err != nil {
				return fmt.Errorf("decode tables_data: %w", err)
			}
		}
		if len(counts) > 0 {
			if err := json.Unmarshal(counts, &s.ElementCounts); err != nil {
				return fmt.Errorf("decode element_counts: %w", err)
			}
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		r.log.Error("list slides failed", "err", err)
		return nil, fmt.Errorf("%w: list slides", err)
	}
	return out, nil
}

// encodeTables stores an empty table list as NULL.
func encodeTables(tables []entity.TableData) (any, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tables)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return string(b), nil
}
