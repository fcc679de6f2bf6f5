package entity

import (
	"time"

	"github.com/google/uuid"
)

// TableData is one exported table on a page.
type TableData struct {
	Markdown string `json:"markdown"`
	CSV      string `json:"csv"`
}

// ElementCounts holds the per-page element tallies that feed the complexity score.
type ElementCounts struct {
	TextBlocks int `json:"text_blocks"`
	Tables     int `json:"tables"`
	Pictures   int `json:"pictures"`
}

// PageRecord is the normalized extraction result for one page, before it is stored.
type PageRecord struct {
	SlideNumber     int           `json:"slide_number"`
	TextContent     *string       `json:"text_content"`
	TablesData      []TableData   `json:"tables_data"`
	ImagesOCRText   *string       `json:"images_ocr_text"`
	ElementCounts   ElementCounts `json:"element_counts"`
	ComplexityScore float64       `json:"complexity_score"`
}

// Slide is a stored page record.
type Slide struct {
	ID           uuid.UUID `json:"slide_id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	PageRecord
	CreatedAt time.Time `json:"created_at"`
}
