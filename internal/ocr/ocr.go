// Package ocr is the poppler/tesseract extraction engine. Text and tables come
// from pdftotext's layout mode; pages with no text layer are rasterized and
// OCR'd into picture elements.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/submissions-pipeline/internal/extract"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for image-only pages, default 200

	// OCRImagePages rasterizes and OCRs pages that have no text layer.
	OCRImagePages bool
}

type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

var _ extract.Engine = (*Engine)(nil)

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return newEngine(cfg, execRunner{logger: logger}, logger)
}

func newEngine(cfg Config, r Runner, logger *slog.Logger) *Engine {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	return &Engine{cfg: cfg, runner: r, logger: logger}
}

func (e *Engine) Name() string { return "poppler" }

// Convert writes data to a scratch file and runs the poppler tools over it.
func (e *Engine) Convert(ctx context.Context, data []byte) (*extract.Document, error) {
	tmpDir, err := os.MkdirTemp("", "sp-pdf-*")
	if err != nil {
		return nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch pdf: %w", err)
	}

	pages, err := e.pdfToText(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	doc := &extract.Document{Pages: len(pages)}
	var ocrPages int
	for i, text := range pages {
		pageNo := i + 1
		els := layoutElements(pageNo, text)
		if len(els) == 0 && e.cfg.OCRImagePages {
			txt, err := e.ocrPage(ctx, path, tmpDir, pageNo)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				e.logger.Warn("page ocr failed", "page", pageNo, "error", err)
			} else if txt != "" {
				els = append(els, extract.Picture{Page: pageNo, OCRText: []string{txt}})
				ocrPages++
			}
		}
		doc.Elements = append(doc.Elements, els...)
	}

	e.logger.Debug("poppler conversion done", "pages", doc.Pages, "elements", len(doc.Elements), "ocr_pages", ocrPages)
	return doc, nil
}
