package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/submissions-pipeline/constants"
	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

var projectColumns = []string{
	"project_id", "project_name", "drive_folder_id", "drive_folder_url", "status", "created_at", "updated_at",
}

type ProjectRepository interface {
	Create(ctx context.Context, p entity.Project) (*entity.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Project, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.ProjectStatus) error
}

type projectRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewProjectRepository(drv *entsql.Driver, log *slog.Logger) ProjectRepository {
	if log == nil {
		log = slog.Default()
	}
	return &projectRepo{drv: drv, log: log}
}

func (r *projectRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *projectRepo) Create(ctx context.Context, p entity.Project) (*entity.Project, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = string(constants.ProjectDraft)
	}
	now := nowUTC()
	p.CreatedAt, p.UpdatedAt = now, now
	ins := r.builder().Insert(tableProjects).
		Columns(projectColumns...).
		Values(p.ID, p.Name, p.DriveFolderID, p.DriveFolderURL, p.Status, p.CreatedAt, p.UpdatedAt)
	if _, err := exec(ctx, r.drv, ins); err != nil {
		r.log.Error("project create failed", "name", p.Name, "err", err)
		return nil, err
	}
	r.log.Info("project created", "project_id", p.ID, "name", p.Name, "folder_id", p.DriveFolderID)
	return &p, nil
}

func (r *projectRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	sel := r.builder().Select(projectColumns...).
		From(r.builder().Table(tableProjects)).
		Where(entsql.EQ(colProjectID, id)).
		Limit(1)
	var (
		p     entity.Project
		found bool
	)
	err := query(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		found = true
		return rows.Scan(&p.ID, &p.Name, &p.DriveFolderID, &p.DriveFolderURL, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	})
	if err != nil {
		r.log.Error("project get failed", "project_id", id, "err", err)
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}
	return &p, nil
}

func (r *projectRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := r.GetByID(ctx, id)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (r *projectRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.ProjectStatus) error {
	upd := r.builder().Update(tableProjects).
		Set("status", string(status)).
		Set(colUpdatedAt, nowUTC()).
		Where(entsql.EQ(colProjectID, id))
	n, err := exec(ctx, r.drv, upd)
	if err != nil {
		r.log.Error("project status update failed", "project_id", id, "status", status, "err", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}
	r.log.Info("project status updated", "project_id", id, "status", status)
	return nil
}
