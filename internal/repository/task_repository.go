package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/appforge/engine/internal/models"
	appErr "github.com/appforge/engine/pkg/errors"
)

type TaskRepository interface {
	BaseRepository[models.Task]
	GetByProject(ctx context.Context, projectID uuid.UUID, dest *models.Task) error
	HasActiveByUser(ctx context.Context, userID uuid.UUID) (bool, error)
	MarkProcessing(ctx context.Context, taskID uuid.UUID, startedAt time.Time) error
	MarkCompleted(ctx context.Context, taskID uuid.UUID, completedAt time.Time) error
	MarkFailed(ctx context.Context, taskID uuid.UUID, completedAt time.Time) error
}

type taskRepository struct {
	BaseRepository[models.Task]
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{BaseRepository: NewBaseRepository[models.Task](db), db: db}
}

func (r *taskRepository) GetByProject(ctx context.Context, projectID uuid.UUID, dest *models.Task) error {
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(dest).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "task not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get task by project failed")
	}
	return nil
}

func (r *taskRepository) HasActiveByUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("user_id = ? AND status IN ?", userID, []string{models.TaskStatusPending, models.TaskStatusProcessing}).
		Count(&count).Error
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "count active tasks failed")
	}
	return count > 0, nil
}

func (r *taskRepository) MarkProcessing(ctx context.Context, taskID uuid.UUID, startedAt time.Time) error {
	return r.updates(ctx, taskID, map[string]any{"status": models.TaskStatusProcessing, "started_at": startedAt})
}

func (r *taskRepository) MarkCompleted(ctx context.Context, taskID uuid.UUID, completedAt time.Time) error {
	return r.updates(ctx, taskID, map[string]any{"status": models.TaskStatusCompleted, "completed_at": completedAt})
}

func (r *taskRepository) MarkFailed(ctx context.Context, taskID uuid.UUID, completedAt time.Time) error {
	return r.updates(ctx, taskID, map[string]any{"status": models.TaskStatusFailed, "completed_at": completedAt})
}

func (r *taskRepository) updates(ctx context.Context, taskID uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", taskID).Updates(fields)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update task failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "task not found")
	}
	return nil
}
