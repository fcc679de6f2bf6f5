package migrate

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// ProjectsColumns holds the columns for the "projects" table.
	ProjectsColumns = []*schema.Column{
		{Name: "project_id", Type: field.TypeUUID},
		{Name: "project_name", Type: field.TypeString},
		{Name: "drive_folder_id", Type: field.TypeString},
		{Name: "drive_folder_url", Type: field.TypeString, Default: ""},
		{Name: "status", Type: field.TypeString, Default: "draft"},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ProjectsTable holds the schema information for the "projects" table.
	ProjectsTable = &schema.Table{
		Name:       "projects",
		Columns:    ProjectsColumns,
		PrimaryKey: []*schema.Column{ProjectsColumns[0]},
	}

	// SubmissionsColumns holds the columns for the "submissions" table.
	SubmissionsColumns = []*schema.Column{
		{Name: "submission_id", Type: field.TypeUUID},
		{Name: "team_name", Type: field.TypeString},
		{Name: "drive_file_id", Type: field.TypeString},
		{Name: "drive_file_name", Type: field.TypeString, Default: ""},
		{Name: "file_size", Type: field.TypeInt64, Nullable: true},
		{Name: "processing_status", Type: field.TypeString, Default: "pending"},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "project_id", Type: field.TypeUUID},
	}
	// SubmissionsTable holds the schema information for the "submissions" table.
	SubmissionsTable = &schema.Table{
		Name:       "submissions",
		Columns:    SubmissionsColumns,
		PrimaryKey: []*schema.Column{SubmissionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "submissions_projects_submissions",
				Columns:    []*schema.Column{SubmissionsColumns[8]},
				RefColumns: []*schema.Column{ProjectsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "submission_project_id_drive_file_id",
				Unique:  true,
				Columns: []*schema.Column{SubmissionsColumns[8], SubmissionsColumns[2]},
			},
			{
				Name:    "submission_project_id_processing_status",
				Unique:  false,
				Columns: []*schema.Column{SubmissionsColumns[8], SubmissionsColumns[5]},
			},
		},
	}

	// ProcessingJobsColumns holds the columns for the "processing_jobs" table.
	ProcessingJobsColumns = []*schema.Column{
		{Name: "job_id", Type: field.TypeUUID},
		{Name: "project_id", Type: field.TypeUUID},
		{Name: "job_type", Type: field.TypeString},
		{Name: "status", Type: field.TypeString, Default: "queued"},
		{Name: "retry_count", Type: field.TypeInt, Default: 0},
		{Name: "max_retries", Type: field.TypeInt, Default: 2},
		{Name: "error_message", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "started_at", Type: field.TypeTime, Nullable: true},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "submission_id", Type: field.TypeUUID},
	}
	// ProcessingJobsTable holds the schema information for the "processing_jobs" table.
	ProcessingJobsTable = &schema.Table{
		Name:       "processing_jobs",
		Columns:    ProcessingJobsColumns,
		PrimaryKey: []*schema.Column{ProcessingJobsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "processing_jobs_submissions_jobs",
				Columns:    []*schema.Column{ProcessingJobsColumns[10]},
				RefColumns: []*schema.Column{SubmissionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "processingjob_submission_id_job_type",
				Unique:  true,
				Columns: []*schema.Column{ProcessingJobsColumns[10], ProcessingJobsColumns[2]},
			},
			{
				Name:    "processingjob_project_id_status",
				Unique:  false,
				Columns: []*schema.Column{ProcessingJobsColumns[1], ProcessingJobsColumns[3]},
			},
		},
	}

	// SubmissionSlidesColumns holds the columns for the "submission_slides" table.
	SubmissionSlidesColumns = []*schema.Column{
		{Name: "slide_id", Type: field.TypeUUID},
		{Name: "project_id", Type: field.TypeUUID},
		{Name: "slide_number", Type: field.TypeInt},
		{Name: "text_content", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "tables_data", Type: field.TypeJSON, Nullable: true},
		{Name: "images_ocr_text", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "element_counts", Type: field.TypeJSON},
		{Name: "complexity_score", Type: field.TypeFloat64, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "submission_id", Type: field.TypeUUID},
	}
	// SubmissionSlidesTable holds the schema information for the "submission_slides" table.
	SubmissionSlidesTable = &schema.Table{
		Name:       "submission_slides",
		Columns:    SubmissionSlidesColumns,
		PrimaryKey: []*schema.Column{SubmissionSlidesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "submission_slides_submissions_slides",
				Columns:    []*schema.Column{SubmissionSlidesColumns[9]},
				RefColumns: []*schema.Column{SubmissionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "slide_submission_id_slide_number",
				Unique:  true,
				Columns: []*schema.Column{SubmissionSlidesColumns[9], SubmissionSlidesColumns[2]},
			},
			{
				Name:    "slide_project_id",
				Unique:  false,
				Columns: []*schema.Column{SubmissionSlidesColumns[1]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ProjectsTable,
		SubmissionsTable,
		ProcessingJobsTable,
		SubmissionSlidesTable,
	}
)

func init() {
	SubmissionsTable.ForeignKeys[0].RefTable = ProjectsTable
	ProcessingJobsTable.ForeignKeys[0].RefTable = SubmissionsTable
	SubmissionSlidesTable.ForeignKeys[0].RefTable = SubmissionsTable
}
