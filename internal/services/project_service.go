package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appforge/engine/internal/models"
	"github.com/appforge/engine/internal/repository"
	appErr "github.com/appforge/engine/pkg/errors"
	"github.com/appforge/engine/pkg/logger"
)

// ProjectService exposes read access to projects and their audit trail.
// Projects are only ever written by the pipeline; the API surface is
// read-only apart from deletion.
type ProjectService interface {
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
	GetProjectLogs(ctx context.Context, projectID, userID uuid.UUID) ([]models.DeploymentLog, error)
	GetTask(ctx context.Context, taskID, userID uuid.UUID) (*models.Task, error)
	DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error
}

type projectService struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	logRepo     repository.DeploymentLogRepository
}

func NewProjectService(projectRepo repository.ProjectRepository, taskRepo repository.TaskRepository, logRepo repository.DeploymentLogRepository) ProjectService {
	return &projectService{projectRepo: projectRepo, taskRepo: taskRepo, logRepo: logRepo}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	return s.projectRepo.ListByUser(ctx, userID)
}

func (s *projectService) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, appErr.New(appErr.CodeUnauthorized, "user does not own project")
	}
	return &p, nil
}

// GetProjectLogs returns the audit trail in append order.
func (s *projectService) GetProjectLogs(ctx context.Context, projectID, userID uuid.UUID) ([]models.DeploymentLog, error) {
	if _, err := s.GetProject(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.logRepo.ListByProject(ctx, projectID)
}

func (s *projectService) GetTask(ctx context.Context, taskID, userID uuid.UUID) (*models.Task, error) {
	var t models.Task
	if err := s.taskRepo.GetByID(ctx, taskID, &t); err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, appErr.New(appErr.CodeUnauthorized, "user does not own task")
	}
	return &t, nil
}

func (s *projectService) DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return err
	}
	if p.UserID != userID {
		return appErr.New(appErr.CodeUnauthorized, "user does not own project")
	}
	if p.Status == models.ProjectStatusProcessing {
		return appErr.New(appErr.CodeConflict, "project has a run in progress")
	}
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return err
	}
	logger.L().Info("project deleted", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	return nil
}
