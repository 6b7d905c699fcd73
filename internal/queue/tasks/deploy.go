package tasks

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/appforge/engine/internal/models"
	"github.com/appforge/engine/internal/pipeline"
	"github.com/appforge/engine/internal/repository"
	"github.com/appforge/engine/pkg/logger"
)

// TypeDeploymentRun is the asynq task type for one pipeline run.
const TypeDeploymentRun = "deployment:run"

// DeployPayload is the task payload for deployment runs.
type DeployPayload struct {
	TaskID string `json:"task_id"`
}

// NewDeployTask builds the asynq task for one run. MaxRetry(0) because the
// pipeline performs non-idempotent creation calls against third-party APIs;
// a second attempt would collide with the repository it already created.
func NewDeployTask(taskID uuid.UUID) (*asynq.Task, error) {
	pb, err := json.Marshal(DeployPayload{TaskID: taskID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDeploymentRun, pb, asynq.MaxRetry(0)), nil
}

// PipelineRunner is the engine boundary the handler delegates to.
type PipelineRunner interface {
	Run(ctx context.Context, run pipeline.Context) error
}

// DeployTaskHandler hydrates a pipeline context from the database and hands
// it to the engine.
type DeployTaskHandler struct {
	engine      PipelineRunner
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	credRepo    repository.CredentialRepository
}

func NewDeployTaskHandler(engine PipelineRunner, taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository, userRepo repository.UserRepository, credRepo repository.CredentialRepository) *DeployTaskHandler {
	return &DeployTaskHandler{engine: engine, taskRepo: taskRepo, projectRepo: projectRepo, userRepo: userRepo, credRepo: credRepo}
}

func (h *DeployTaskHandler) HandleDeploy(ctx context.Context, t *asynq.Task) error {
	var p DeployPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid deploy task payload", zap.Error(err))
		return err
	}
	taskID, err := uuid.Parse(p.TaskID)
	if err != nil {
		logger.L().Error("invalid task id in payload", zap.Error(err))
		return err
	}

	logger.L().Info("handling deployment task", zap.String("task_id", taskID.String()))

	var task models.Task
	if err := h.taskRepo.GetByID(ctx, taskID, &task); err != nil {
		logger.L().Error("get task failed", zap.Error(err))
		return err
	}

	var project models.Project
	if err := h.projectRepo.GetByID(ctx, task.ProjectID, &project); err != nil {
		logger.L().Error("get project failed", zap.Error(err))
		return err
	}

	var user models.User
	if err := h.userRepo.GetByID(ctx, task.UserID, &user); err != nil {
		logger.L().Error("get user failed", zap.Error(err))
		return err
	}

	var cred models.Credential
	if err := h.credRepo.GetByUser(ctx, task.UserID, &cred); err != nil {
		logger.L().Error("get credentials failed", zap.Error(err))
		return err
	}

	run := pipeline.Context{
		ProjectID:   project.ID,
		TaskID:      task.ID,
		UserID:      task.UserID,
		UserEmail:   user.Email,
		Requirement: project.Requirement,
		Credentials: pipeline.Credentials{
			GitHubToken:     cred.GitHubToken,
			GitHubUsername:  cred.GitHubUsername,
			VercelToken:     cred.VercelToken,
			VercelTeamID:    cred.VercelTeamID,
			SupabaseURL:     cred.SupabaseURL,
			SupabaseAnonKey: cred.SupabaseAnonKey,
		},
	}

	// The engine persists its own failure state; the error is returned only
	// so asynq records the task outcome.
	return h.engine.Run(ctx, run)
}
