// Package extract turns PDF bytes into per-page slide records using a
// pluggable engine running on a shared worker pool.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

// ErrExtractionFailed wraps every extraction failure. Partial results are
// never returned alongside it.
var ErrExtractionFailed = errors.New("extraction failed")

type Adapter struct {
	engine Engine
	pool   *Pool
	logger *slog.Logger
}

func NewAdapter(engine Engine, pool *Pool, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{engine: engine, pool: pool, logger: logger}
}

// Extract converts data on the pool and normalizes the result into page
// records numbered 1..N.
func (a *Adapter) Extract(ctx context.Context, data []byte, submissionID string) ([]entity.PageRecord, error) {
	start := time.Now()
	log := a.logger.With("submission_id", submissionID, "engine", a.engine.Name())

	if mt := mimetype.Detect(data); !mt.Is(constants.MIMEPDF) {
		log.Warn("pipeline.extract.rejected", "detected_mime", mt.String())
		return nil, fmt.Errorf("%w: not a pdf (detected %s)", ErrExtractionFailed, mt.String())
	}

	var doc *Document
	err := a.pool.Submit(ctx, func(ctx context.Context) error {
		d, err := a.engine.Convert(ctx, data)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		log.Error("pipeline.extract.engine_failed", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if doc == nil || doc.Pages == 0 {
		log.Warn("pipeline.extract.no_pages")
		return nil, fmt.Errorf("%w: document has no pages", ErrExtractionFailed)
	}

	records := BuildPageRecords(doc)
	if err := ValidateRecords(records); err != nil {
		log.Error("pipeline.extract.invalid_records", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	log.Info("pipeline.extract.ok",
		"pages", len(records),
		"elements", len(doc.Elements),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}
