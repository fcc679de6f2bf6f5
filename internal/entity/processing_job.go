package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingJob is one retryable unit of work for a (submission, stage) pair.
type ProcessingJob struct {
	ID           uuid.UUID  `json:"job_id"`
	SubmissionID uuid.UUID  `json:"submission_id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	JobType      string     `json:"job_type"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
