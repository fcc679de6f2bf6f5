package entity

import (
	"time"

	"github.com/google/uuid"
)

// Submission represents one external document under evaluation.
type Submission struct {
	ID               uuid.UUID `json:"submission_id"`
	ProjectID        uuid.UUID `json:"project_id"`
	TeamName         string    `json:"team_name"`
	DriveFileID      string    `json:"drive_file_id"`
	DriveFileName    string    `json:"drive_file_name"`
	FileSize         *int64    `json:"file_size,omitempty"`
	ProcessingStatus string    `json:"processing_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
