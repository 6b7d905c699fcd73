package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/appforge/engine/internal/models"
	appErr "github.com/appforge/engine/pkg/errors"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateStatus(ctx context.Context, projectID uuid.UUID, status string) error
	SaveAnalysis(ctx context.Context, projectID uuid.UUID, name, description, framework string, features, techStack []string) error
	SaveRepoURL(ctx context.Context, projectID uuid.UUID, repoURL string) error
	MarkSuccess(ctx context.Context, projectID uuid.UUID, deploymentURL string, completedAt time.Time) error
	MarkFailed(ctx context.Context, projectID uuid.UUID, errorMessage string, completedAt time.Time) error
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db), db: db}
}

func (r *projectRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects by user failed")
	}
	return out, nil
}

func (r *projectRepository) UpdateStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	return r.updates(ctx, projectID, map[string]any{"status": status})
}

func (r *projectRepository) SaveAnalysis(ctx context.Context, projectID uuid.UUID, name, description, framework string, features, techStack []string) error {
	fb, err := jsonList(features)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "marshal features failed")
	}
	tb, err := jsonList(techStack)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "marshal tech stack failed")
	}
	return r.updates(ctx, projectID, map[string]any{
		"name":        name,
		"description": description,
		"framework":   framework,
		"features":    fb,
		"tech_stack":  tb,
	})
}

func (r *projectRepository) SaveRepoURL(ctx context.Context, projectID uuid.UUID, repoURL string) error {
	return r.updates(ctx, projectID, map[string]any{"repo_url": repoURL})
}

func (r *projectRepository) MarkSuccess(ctx context.Context, projectID uuid.UUID, deploymentURL string, completedAt time.Time) error {
	return r.updates(ctx, projectID, map[string]any{
		"status":         models.ProjectStatusSuccess,
		"deployment_url": deploymentURL,
		"completed_at":   completedAt,
	})
}

func (r *projectRepository) MarkFailed(ctx context.Context, projectID uuid.UUID, errorMessage string, completedAt time.Time) error {
	return r.updates(ctx, projectID, map[string]any{
		"status":        models.ProjectStatusFailed,
		"error_message": errorMessage,
		"completed_at":  completedAt,
	})
}

func (r *projectRepository) updates(ctx context.Context, projectID uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Updates(fields)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update project failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "project not found")
	}
	return nil
}

func jsonList(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
