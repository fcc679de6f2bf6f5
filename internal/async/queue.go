package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueClosed = errors.New("batch queue is shutting down")
	ErrQueueFull   = errors.New("batch queue is full")
)

// Job asks for one processing batch over a project's pending submissions.
type Job struct {
	ProjectID   uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Shutdown reports whether every running batch finished before ctx ended.
	Shutdown(ctx context.Context) bool
}
