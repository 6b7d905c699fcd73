package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/appforge/engine/internal/models"
	appErr "github.com/appforge/engine/pkg/errors"
)

// DeploymentLogRepository is append-only: entries are never updated or deleted.
type DeploymentLogRepository interface {
	Append(ctx context.Context, entry *models.DeploymentLog) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.DeploymentLog, error)
}

type deploymentLogRepository struct {
	db *gorm.DB
}

func NewDeploymentLogRepository(db *gorm.DB) DeploymentLogRepository {
	return &deploymentLogRepository{db: db}
}

func (r *deploymentLogRepository) Append(ctx context.Context, entry *models.DeploymentLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "append deployment log failed")
	}
	return nil
}

func (r *deploymentLogRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.DeploymentLog, error) {
	var out []models.DeploymentLog
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list deployment logs failed")
	}
	return out, nil
}
