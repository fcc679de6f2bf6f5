// Package ingest registers the documents found in a project's Drive folder as
// pending submissions with their processing jobs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/drive"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
	"github.com/joseph-ayodele/submissions-pipeline/internal/repository"
)

// Lister lists the documents in a folder.
type Lister interface {
	ListDocuments(ctx context.Context, folderID string) ([]drive.Document, error)
}

type ScanFailure struct {
	DriveFileID string `json:"drive_file_id"`
	Name        string `json:"name"`
	Error       string `json:"error"`
}

type ScanResult struct {
	ProjectID uuid.UUID     `json:"project_id"`
	Listed    int           `json:"listed"`
	Created   int           `json:"created"`
	Existing  int           `json:"existing"`
	Failures  []ScanFailure `json:"failures,omitempty"`
}

type Registrar struct {
	lister     Lister
	projects   repository.ProjectRepository
	subs       repository.SubmissionRepository
	maxRetries int
	logger     *slog.Logger
}

func NewRegistrar(
	lister Lister,
	projects repository.ProjectRepository,
	subs repository.SubmissionRepository,
	maxRetries int,
	logger *slog.Logger,
) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = constants.DefaultMaxRetries
	}
	return &Registrar{lister: lister, projects: projects, subs: subs, maxRetries: maxRetries, logger: logger}
}

// ScanProject lists the project's folder and registers every PDF not seen
// before. Running it again only picks up new files.
func (r *Registrar) ScanProject(ctx context.Context, projectID uuid.UUID) (ScanResult, error) {
	res := ScanResult{ProjectID: projectID}
	log := r.logger.With("project_id", projectID)

	p, err := r.projects.GetByID(ctx, projectID)
	if err != nil {
		return res, err
	}
	folderID := p.DriveFolderID
	if folderID == "" {
		id, ok := common.ParseDriveFolderID(p.DriveFolderURL)
		if !ok {
			return res, common.NewAppError("INVALID_FOLDER", "project has no Drive folder", common.ErrInvalidInput)
		}
		folderID = id
	}

	docs, err := r.lister.ListDocuments(ctx, folderID)
	if err != nil {
		log.Error("folder listing failed", "folder_id", folderID, "err", err)
		return res, fmt.Errorf("list folder: %w", err)
	}
	res.Listed = len(docs)

	for _, d := range docs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		created, err := r.register(ctx, projectID, d)
		switch {
		case err != nil:
			log.Error("register document failed", "drive_file_id", d.ID, "name", d.Name, "err", err)
			res.Failures = append(res.Failures, ScanFailure{DriveFileID: d.ID, Name: d.Name, Error: err.Error()})
		case created:
			res.Created++
		default:
			res.Existing++
		}
	}

	log.Info("folder scan completed",
		"folder_id", folderID,
		"listed", res.Listed,
		"created", res.Created,
		"existing", res.Existing,
		"failed", len(res.Failures),
	)
	return res, nil
}

func (r *Registrar) register(ctx context.Context, projectID uuid.UUID, d drive.Document) (bool, error) {
	existing, err := r.subs.GetByDriveFileID(ctx, projectID, d.ID)
	if err == nil && existing != nil {
		return false, nil
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return false, err
	}

	// The submission and its jobs land together or not at all, so a failed
	// registration is picked up again by the next scan.
	_, err = r.subs.Register(ctx, entity.Submission{
		ProjectID:     projectID,
		TeamName:      TeamNameFromFile(d.Name),
		DriveFileID:   d.ID,
		DriveFileName: d.Name,
		FileSize:      d.Size,
	},
		repository.JobSpec{Type: constants.JobTypeFetch, MaxRetries: r.maxRetries},
		repository.JobSpec{Type: constants.JobTypeExtract, MaxRetries: 0},
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// TeamNameFromFile derives a display name from a file name: the extension is
// dropped and underscores become spaces.
func TeamNameFromFile(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Join(strings.Fields(strings.ReplaceAll(base, "_", " ")), " ")
	if base == "" {
		return "Unknown Team"
	}
	return base
}
