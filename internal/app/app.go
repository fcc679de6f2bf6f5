// Package app wires configuration, storage and the processing stack together
// for the binaries under cmd/.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/submissions-pipeline/internal/async"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/drive"
	"github.com/joseph-ayodele/submissions-pipeline/internal/export"
	"github.com/joseph-ayodele/submissions-pipeline/internal/extract"
	"github.com/joseph-ayodele/submissions-pipeline/internal/fetch"
	"github.com/joseph-ayodele/submissions-pipeline/internal/ingest"
	"github.com/joseph-ayodele/submissions-pipeline/internal/mupdf"
	"github.com/joseph-ayodele/submissions-pipeline/internal/ocr"
	"github.com/joseph-ayodele/submissions-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/submissions-pipeline/internal/repository"
	"github.com/joseph-ayodele/submissions-pipeline/internal/services/processing"
)

// App holds the long-lived dependencies shared by the daemon and the CLI.
type App struct {
	Config       *common.Config
	DB           *repository.DB
	Projects     repository.ProjectRepository
	Submissions  repository.SubmissionRepository
	Jobs         repository.JobRepository
	Slides       repository.SlideRepository
	Orchestrator *pipeline.Orchestrator
	Queue        *async.BatchQueue
	Processing   *processing.Service
	Export       *export.Service
	Registrar    *ingest.Registrar

	pool   *extract.Pool
	logger *slog.Logger
}

// New opens the database and builds the processing stack from cfg.
func New(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(inmem); err != nil {
		return nil, common.WrapError(err, "config")
	}

	db, err := repository.Init(ctx, cfg.Database, inmem, logger)
	if err != nil {
		return nil, common.WrapError(err, "database")
	}
	if err := repository.HealthCheck(ctx, db.Driver, db.Pool, 5*time.Second, logger); err != nil {
		db.Close()
		return nil, common.WrapError(err, "database")
	}

	a := &App{Config: cfg, DB: db, logger: logger}
	a.Projects = repository.NewProjectRepository(db.Driver, logger)
	a.Submissions = repository.NewSubmissionRepository(db.Driver, logger)
	a.Jobs = repository.NewJobRepository(db.Driver, logger)
	a.Slides = repository.NewSlideRepository(db.Driver, logger)

	driveClient, err := drive.NewClient(ctx, drive.Config{
		APIKey:     cfg.Drive.APIKey,
		BaseURL:    cfg.Drive.BaseURL,
		Timeout:    cfg.Drive.FetchTimeout,
		MaxBytes:   cfg.Drive.MaxBytes,
		RatePerSec: cfg.Drive.RatePerSec,
		Burst:      cfg.Drive.Burst,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	fetcher := fetch.New(driveClient, logger,
		fetch.WithTimeout(cfg.Drive.FetchTimeout),
		fetch.WithMaxBytes(cfg.Drive.MaxBytes),
	)

	a.pool = extract.NewPool(cfg.Extract.Workers, logger)
	adapter := extract.NewAdapter(engine(cfg.Extract, logger), a.pool, logger)

	a.Orchestrator = pipeline.NewOrchestrator(a.Submissions, a.Jobs, a.Slides, a.Projects, fetcher, adapter, logger,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
	)
	a.Queue = async.NewBatchQueue(a.Orchestrator, logger,
		async.WithWorkers(cfg.Pipeline.QueueWorkers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
	)
	a.Registrar = ingest.NewRegistrar(driveClient, a.Projects, a.Submissions, cfg.Pipeline.MaxRetries, logger)
	a.Processing = processing.NewService(a.Projects, a.Submissions, a.Jobs, a.Slides, a.Registrar, a.Queue, logger)
	a.Export = export.NewService(a.Projects, a.Submissions, a.Slides, logger)

	logger.Info("application initialized",
		"engine", cfg.Extract.Engine,
		"extract_workers", cfg.Extract.Workers,
		"concurrency", cfg.Pipeline.Concurrency,
		"inmem", inmem,
	)
	return a, nil
}

func engine(cfg common.ExtractConfig, logger *slog.Logger) extract.Engine {
	if cfg.Engine == "mupdf" {
		return mupdf.NewEngine(logger)
	}
	return ocr.NewEngine(ocr.Config{
		Pdftotext:     cfg.Pdftotext,
		Pdftoppm:      cfg.Pdftoppm,
		Tesseract:     cfg.Tesseract,
		TesseractLang: cfg.TesseractLang,
		TessdataDir:   cfg.TessdataDir,
		DPI:           cfg.DPI,
		OCRImagePages: cfg.OCRImagePages,
	}, logger)
}

// Ping checks the database.
func (a *App) Ping(ctx context.Context) error {
	return repository.HealthCheck(ctx, a.DB.Driver, a.DB.Pool, 2*time.Second, a.logger)
}

// Close stops the queue, then the extraction pool, then the database. When
// batches are still running after ctx ends, the pool and database stay open so
// in-flight submissions can still record their status; Close then reports false.
func (a *App) Close(ctx context.Context) bool {
	if !a.Queue.Shutdown(ctx) {
		a.logger.Warn("batches still running, leaving extraction pool and database open")
		return false
	}
	a.pool.Close()
	a.DB.Close()
	return true
}
