package constants

// SubmissionStatus is the lifecycle status stored in submissions.processing_status.
type SubmissionStatus string

const (
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionProcessing SubmissionStatus = "processing"
	SubmissionCompleted  SubmissionStatus = "completed"
	SubmissionFailed     SubmissionStatus = "failed"
)

// IsTerminal reports whether no automatic transition follows s.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionCompleted || s == SubmissionFailed
}

// JobStatus is the canonical status for rows in processing_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed" // terminal failure
)

// JobType names the stage a processing job tracks.
type JobType string

const (
	// JobTypeFetch tracks downloading the document bytes. The stored value
	// predates the split into separate stages and is kept for existing rows.
	JobTypeFetch JobType = "pdf_extraction"
	// JobTypeExtract tracks page extraction. Optional; never re-queued.
	JobTypeExtract JobType = "slide_extraction"
)

// ProjectStatus is the status of a project record.
type ProjectStatus string

const (
	ProjectDraft  ProjectStatus = "draft"
	ProjectActive ProjectStatus = "active"
)

// DefaultMaxRetries is used when the registrar seeds fetch jobs.
const DefaultMaxRetries = 2
