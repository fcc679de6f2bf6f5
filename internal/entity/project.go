package entity

import (
	"time"

	"github.com/google/uuid"
)

// Project represents the slice of a project record the pipeline reads and writes.
type Project struct {
	ID             uuid.UUID `json:"project_id"`
	Name           string    `json:"project_name"`
	DriveFolderID  string    `json:"drive_folder_id"`
	DriveFolderURL string    `json:"drive_folder_url"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
