// Package mupdf is an in-process extraction engine backed by MuPDF through
// go-fitz. It needs no external binaries, at the cost of not detecting tables.
package mupdf

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/joseph-ayodele/submissions-pipeline/internal/extract"
)

type Engine struct {
	logger *slog.Logger
	openMu sync.Mutex // serializes fitz.NewFromMemory
}

var _ extract.Engine = (*Engine)(nil)

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

func (e *Engine) Name() string { return "mupdf" }

func (e *Engine) Convert(ctx context.Context, data []byte) (*extract.Document, error) {
	e.openMu.Lock()
	doc, err := fitz.NewFromMemory(data)
	e.openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			e.logger.Warn("failed to close pdf", "error", err)
		}
	}()

	pages := doc.NumPage()
	out := &extract.Document{Pages: pages}
	for i := 0; i < pages; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		markup, err := doc.HTML(i, false)
		if err != nil {
			return nil, fmt.Errorf("page %d html: %w", i+1, err)
		}
		els, err := parsePageHTML(i+1, markup)
		if err != nil {
			return nil, fmt.Errorf("page %d parse: %w", i+1, err)
		}
		out.Elements = append(out.Elements, els...)
	}
	return out, nil
}
