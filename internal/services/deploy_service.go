package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/appforge/engine/internal/models"
	"github.com/appforge/engine/internal/queue/tasks"
	"github.com/appforge/engine/internal/repository"
	appErr "github.com/appforge/engine/pkg/errors"
	"github.com/appforge/engine/pkg/logger"
)

// DeployService accepts deployment requests: it runs the admission checks
// (credentials, concurrency, quota), persists the pending project and task,
// and enqueues the pipeline run.
type DeployService interface {
	RequestDeployment(ctx context.Context, userID uuid.UUID, requirement string) (*models.Project, *models.Task, error)
}

// Enqueuer is the queue client boundary; satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type deployService struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	credRepo    repository.CredentialRepository
	quotaRepo   repository.QuotaRepository
	queue       Enqueuer
	dailyLimit  int
}

func NewDeployService(projectRepo repository.ProjectRepository, taskRepo repository.TaskRepository, credRepo repository.CredentialRepository, quotaRepo repository.QuotaRepository, queue Enqueuer, dailyLimit int) DeployService {
	return &deployService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		credRepo:    credRepo,
		quotaRepo:   quotaRepo,
		queue:       queue,
		dailyLimit:  dailyLimit,
	}
}

var _ DeployService = (*deployService)(nil)

// RequestDeployment admits one deployment request. Checks run in a fixed
// order so a rejected request never burns quota: credentials, then the
// single-active-run rule, then the daily counter. Only after all three pass
// is anything persisted or enqueued.
func (s *deployService) RequestDeployment(ctx context.Context, userID uuid.UUID, requirement string) (*models.Project, *models.Task, error) {
	requirement = strings.TrimSpace(requirement)
	if requirement == "" {
		return nil, nil, appErr.New(appErr.CodeInvalid, "requirement must not be empty")
	}

	var cred models.Credential
	if err := s.credRepo.GetByUser(ctx, userID, &cred); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, nil, appErr.New(appErr.CodeInvalid, "github and vercel tokens must be configured before deploying")
		}
		return nil, nil, err
	}
	if !cred.HasRequiredTokens() {
		return nil, nil, appErr.New(appErr.CodeInvalid, "github and vercel tokens must be configured before deploying")
	}

	active, err := s.taskRepo.HasActiveByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if active {
		return nil, nil, appErr.New(appErr.CodeConflict, "a deployment is already in progress")
	}

	today := time.Now()
	var profile models.QuotaProfile
	if err := s.quotaRepo.GetOrCreate(ctx, userID, s.dailyLimit, &profile); err != nil {
		return nil, nil, err
	}
	if err := s.quotaRepo.ResetIfStale(ctx, userID, today); err != nil {
		return nil, nil, err
	}
	ok, err := s.quotaRepo.Consume(ctx, userID, today)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, appErr.New(appErr.CodeQuotaExceeded, "daily deployment limit reached").
			WithMeta("limit", profile.DailyRequestLimit)
	}

	project := &models.Project{
		UserID:      userID,
		Requirement: requirement,
		Status:      models.ProjectStatusPending,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, nil, err
	}

	task := &models.Task{
		ProjectID: project.ID,
		UserID:    userID,
		Status:    models.TaskStatusPending,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, nil, err
	}

	qt, err := tasks.NewDeployTask(task.ID)
	if err != nil {
		return nil, nil, appErr.Wrap(err, appErr.CodeInternal, "build deploy task failed")
	}
	if _, err := s.queue.EnqueueContext(ctx, qt); err != nil {
		// The request was admitted but will never run; fail it now rather
		// than leaving a pending project no worker will pick up.
		now := time.Now()
		_ = s.projectRepo.MarkFailed(ctx, project.ID, "queue unavailable", now)
		_ = s.taskRepo.MarkFailed(ctx, task.ID, now)
		return nil, nil, appErr.Wrap(err, appErr.CodeUnavailable, "enqueue deployment failed")
	}

	logger.L().Info("deployment enqueued",
		zap.String("project_id", project.ID.String()),
		zap.String("task_id", task.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return project, task, nil
}
