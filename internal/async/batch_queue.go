package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/metrics"
	"github.com/joseph-ayodele/submissions-pipeline/internal/pipeline"
)

// BatchProcessor runs one batch for a project.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, projectID uuid.UUID) (pipeline.BatchSummary, error)
}

// BatchQueue runs processing batches on background workers so triggers can
// return right away.
type BatchQueue struct {
	proc    BatchProcessor
	logger  *slog.Logger
	workers int

	// cancelled on shutdown so running batches stop picking up submissions
	baseCtx context.Context
	cancel  context.CancelFunc

	ch      chan Job
	wg      sync.WaitGroup
	once    sync.Once
	drained chan struct{}

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*BatchQueue)(nil)

type Option func(*BatchQueue)

func WithWorkers(n int) Option {
	return func(q *BatchQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *BatchQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func NewBatchQueue(proc BatchProcessor, logger *slog.Logger, opts ...Option) *BatchQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &BatchQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		ch:      make(chan Job, 64),
		drained: make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.baseCtx, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *BatchQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					metrics.QueueDepth.Dec()
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
		go func() {
			q.wg.Wait()
			close(q.drained)
		}()
	})
}

func (q *BatchQueue) run(workerID int, job Job) {
	log := q.logger.With("worker_id", workerID, "project_id", job.ProjectID, "trace_id", job.TraceID)
	batchID := job.TraceID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	ctx := common.WithBatchID(q.baseCtx, batchID)

	log.Info("batch started", "batch_id", batchID, "waited_ms", time.Since(job.SubmittedAt).Milliseconds())
	summary, err := q.proc.ProcessBatch(ctx, job.ProjectID)
	if err != nil {
		log.Error("batch failed", "error", err)
		return
	}
	log.Info("batch finished",
		"selected", summary.Selected,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
}

// Enqueue never blocks. A full queue is reported as ErrQueueFull.
func (q *BatchQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "project_id", job.ProjectID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		metrics.QueueDepth.Inc()
		q.logger.Info("queued batch", "project_id", job.ProjectID, "trace_id", job.TraceID)
		return nil
	default:
		q.logger.Warn("queue full, rejecting batch", "project_id", job.ProjectID)
		return ErrQueueFull
	}
}

// Shutdown stops intake, cancels running batches and waits for workers to
// drain. Queued batches that have not started run with a cancelled context
// and do no work. It reports whether the workers drained before ctx ended;
// a later call keeps waiting on the same workers.
func (q *BatchQueue) Shutdown(ctx context.Context) bool {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
		q.cancel()
	}
	q.mu.Unlock()

	select {
	case <-q.drained:
		q.logger.Info("queue drained, shutdown complete")
		return true
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context, batches still running")
		return false
	}
}
