package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/appforge/engine/internal/models"
	appErr "github.com/appforge/engine/pkg/errors"
	"github.com/appforge/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests (required by services)
	_, err := logger.Init("info", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// Mock implementations

type mockProjectRepository struct {
	mock.Mock
}

func (m *mockProjectRepository) Create(ctx context.Context, obj *models.Project) error {
	args := m.Called(ctx, obj)
	if args.Error(0) == nil {
		obj.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockProjectRepository) GetByID(ctx context.Context, id any, dest *models.Project) error {
	args := m.Called(ctx, id, dest)
	if args.Error(0) == nil && args.Get(1) != nil {
		src := args.Get(1).(*models.Project)
		*dest = *src
	}
	return args.Error(0)
}

func (m *mockProjectRepository) Update(ctx context.Context, obj *models.Project) error {
	args := m.Called(ctx, obj)
	return args.Error(0)
}

func (m *mockProjectRepository) Delete(ctx context.Context, id any) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProjectRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]models.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectRepository) UpdateStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	args := m.Called(ctx, projectID, status)
	return args.Error(0)
}

func (m *mockProjectRepository) SaveAnalysis(ctx context.Context, projectID uuid.UUID, name, description, framework string, features, techStack []string) error {
	args := m.Called(ctx, projectID, name, description, framework, features, techStack)
	return args.Error(0)
}

func (m *mockProjectRepository) SaveRepoURL(ctx context.Context, projectID uuid.UUID, repoURL string) error {
	args := m.Called(ctx, projectID, repoURL)
	return args.Error(0)
}

func (m *mockProjectRepository) MarkSuccess(ctx context.Context, projectID uuid.UUID, deploymentURL string, completedAt time.Time) error {
	args := m.Called(ctx, projectID, deploymentURL, completedAt)
	return args.Error(0)
}

func (m *mockProjectRepository) MarkFailed(ctx context.Context, projectID uuid.UUID, errorMessage string, completedAt time.Time) error {
	args := m.Called(ctx, projectID, errorMessage, completedAt)
	return args.Error(0)
}

type mockTaskRepository struct {
	mock.Mock
}

func (m *mockTaskRepository) Create(ctx context.Context, obj *models.Task) error {
	args := m.Called(ctx, obj)
	if args.Error(0) == nil {
		obj.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockTaskRepository) GetByID(ctx context.Context, id any, dest *models.Task) error {
	args := m.Called(ctx, id, dest)
	if args.Error(0) == nil && args.Get(1) != nil {
		src := args.Get(1).(*models.Task)
		*dest = *src
	}
	return args.Error(0)
}

func (m *mockTaskRepository) Update(ctx context.Context, obj *models.Task) error {
	args := m.Called(ctx, obj)
	return args.Error(0)
}

func (m *mockTaskRepository) Delete(ctx context.Context, id any) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTaskRepository) GetByProject(ctx context.Context, projectID uuid.UUID, dest *models.Task) error {
	args := m.Called(ctx, projectID, dest)
	if args.Error(0) == nil && args.Get(1) != nil {
		src := args.Get(1).(*models.Task)
		*dest = *src
	}
	return args.Error(0)
}

func (m *mockTaskRepository) HasActiveByUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTaskRepository) MarkProcessing(ctx context.Context, taskID uuid.UUID, startedAt time.Time) error {
	args := m.Called(ctx, taskID, startedAt)
	return args.Error(0)
}

func (m *mockTaskRepository) MarkCompleted(ctx context.Context, taskID uuid.UUID, completedAt time.Time) error {
	args := m.Called(ctx, taskID, completedAt)
	return args.Error(0)
}

func (m *mockTaskRepository) MarkFailed(ctx context.Context, taskID uuid.UUID, completedAt time.Time) error {
	args := m.Called(ctx, taskID, completedAt)
	return args.Error(0)
}

type mockCredentialRepository struct {
	mock.Mock
}

func (m *mockCredentialRepository) GetByUser(ctx context.Context, userID uuid.UUID, dest *models.Credential) error {
	args := m.Called(ctx, userID, dest)
	if args.Error(0) == nil && args.Get(1) != nil {
		src := args.Get(1).(*models.Credential)
		*dest = *src
	}
	return args.Error(0)
}

func (m *mockCredentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

type mockQuotaRepository struct {
	mock.Mock
}

func (m *mockQuotaRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, defaultLimit int, dest *models.QuotaProfile) error {
	args := m.Called(ctx, userID, defaultLimit, dest)
	if args.Error(0) == nil && args.Get(1) != nil {
		src := args.Get(1).(*models.QuotaProfile)
		*dest = *src
	}
	return args.Error(0)
}

func (m *mockQuotaRepository) ResetIfStale(ctx context.Context, userID uuid.UUID, today time.Time) error {
	args := m.Called(ctx, userID, today)
	return args.Error(0)
}

func (m *mockQuotaRepository) Consume(ctx context.Context, userID uuid.UUID, today time.Time) (bool, error) {
	args := m.Called(ctx, userID, today)
	return args.Bool(0), args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if v := args.Get(0); v != nil {
		return v.(*asynq.TaskInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDeployService_RequestDeployment(t *testing.T) {
	userID := uuid.New()
	validCred := &models.Credential{
		UserID:      userID,
		GitHubToken: "gh_tok",
		VercelToken: "vc_tok",
	}
	profile := &models.QuotaProfile{UserID: userID, DailyRequestCount: 2, DailyRequestLimit: 10}

	newService := func() (*mockProjectRepository, *mockTaskRepository, *mockCredentialRepository, *mockQuotaRepository, *mockEnqueuer, DeployService) {
		projectRepo := &mockProjectRepository{}
		taskRepo := &mockTaskRepository{}
		credRepo := &mockCredentialRepository{}
		quotaRepo := &mockQuotaRepository{}
		queue := &mockEnqueuer{}
		svc := NewDeployService(projectRepo, taskRepo, credRepo, quotaRepo, queue, 10)
		return projectRepo, taskRepo, credRepo, quotaRepo, queue, svc
	}

	t.Run("accepted", func(t *testing.T) {
		projectRepo, taskRepo, credRepo, quotaRepo, queue, svc := newService()

		credRepo.On("GetByUser", mock.Anything, userID, &models.Credential{}).Return(nil, validCred).Once()
		taskRepo.On("HasActiveByUser", mock.Anything, userID).Return(false, nil).Once()
		quotaRepo.On("GetOrCreate", mock.Anything, userID, 10, &models.QuotaProfile{}).Return(nil, profile).Once()
		quotaRepo.On("ResetIfStale", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
		quotaRepo.On("Consume", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(true, nil).Once()
		projectRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Project) bool {
			return p.UserID == userID && p.Requirement == "todo app" && p.Status == models.ProjectStatusPending
		})).Return(nil).Once()
		taskRepo.On("Create", mock.Anything, mock.MatchedBy(func(task *models.Task) bool {
			return task.UserID == userID && task.Status == models.TaskStatusPending
		})).Return(nil).Once()
		queue.On("EnqueueContext", mock.Anything, mock.AnythingOfType("*asynq.Task")).Return(&asynq.TaskInfo{}, nil).Once()

		project, task, err := svc.RequestDeployment(context.Background(), userID, "  todo app  ")
		require.NoError(t, err)
		require.NotNil(t, project)
		require.NotNil(t, task)
		require.Equal(t, project.ID, task.ProjectID)
		mock.AssertExpectationsForObjects(t, projectRepo, taskRepo, credRepo, quotaRepo, queue)
	})

	t.Run("empty requirement", func(t *testing.T) {
		_, _, credRepo, _, _, svc := newService()

		_, _, err := svc.RequestDeployment(context.Background(), userID, "   ")
		require.Error(t, err)
		require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
		credRepo.AssertNotCalled(t, "GetByUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("credentials not configured", func(t *testing.T) {
		_, taskRepo, credRepo, _, _, svc := newService()

		credRepo.On("GetByUser", mock.Anything, userID, &models.Credential{}).
			Return(appErr.New(appErr.CodeNotFound, "credentials not configured"), nil).Once()

		_, _, err := svc.RequestDeployment(context.Background(), userID, "todo app")
		require.Error(t, err)
		require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
		taskRepo.AssertNotCalled(t, "HasActiveByUser", mock.Anything, mock.Anything)
	})

	t.Run("incomplete tokens", func(t *testing.T) {
		_, _, credRepo, quotaRepo, _, svc := newService()

		credRepo.On("GetByUser", mock.Anything, userID, &models.Credential{}).
			Return(nil, &models.Credential{UserID: userID, GitHubToken: "gh_tok"}).Once()

		_, _, err := svc.RequestDeployment(context.Background(), userID, "todo app")
		require.Error(t, err)
		require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
		quotaRepo.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("run already in progress does not burn quota", func(t *testing.T) {
		_, taskRepo, credRepo, quotaRepo, _, svc := newService()

		credRepo.On("GetByUser", mock.Anything, userID, &models.Credential{}).Return(nil, validCred).Once()
		taskRepo.On("HasActiveByUser", mock.Anything, userID).Return(true, nil).Once()

		_, _, err := svc.RequestDeployment(context.Background(), userID, "todo app")
		require.Error(t, err)
		require.True(t, appErr.IsCode(err, appErr.CodeConflict))
		quotaRepo.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("quota exhausted", func(t *testing.T) {
		projectRepo, taskRepo, credRepo, quotaRepo, _, svc := newService()

		credRepo.On("GetByUser", mock.Anything, userID, &models.Credential{}).Return(nil, validCred).Once()
		taskRepo.On("HasActiveByUser", mock.Anything, userID).Return(false, nil).Once()
		quotaRepo.On("GetOrCreate", mock.Anything, userID, 10, &models.QuotaProfile{}).Return(nil, profile).Once()
		quotaRepo.On("ResetIfStale", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
		quotaRepo.On("Consume", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(false, nil).Once()

		_, _, err := svc.RequestDeployment(context.Background(), userID, "todo app")
		require.Error(t, err)
		require.True(t, appErr.IsCode(err, appErr.CodeQuotaExceeded))
		projectRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("enqueue failure fails the run", func(t *testing.T) {
		projectRepo, taskRepo, credRepo, quotaRepo, queue, svc := newService()

		credRepo.On("GetByUser", mock.Anything, userID, &models.Credential{}).Return(nil, validCred).Once()
		taskRepo.On("HasActiveByUser", mock.Anything, userID).Return(false, nil).Once()
		quotaRepo.On("GetOrCreate", mock.Anything, userID, 10, &models.QuotaProfile{}).Return(nil, profile).Once()
		quotaRepo.On("ResetIfStale", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
		quotaRepo.On("Consume", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(true, nil).Once()
		projectRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		taskRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		queue.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, asynq.ErrServerClosed).Once()
		projectRepo.On("MarkFailed", mock.Anything, mock.Anything, "queue unavailable", mock.AnythingOfType("time.Time")).Return(nil).Once()
		taskRepo.On("MarkFailed", mock.Anything, mock.Anything, mock.AnythingOfType("time.Time")).Return(nil).Once()

		_, _, err := svc.RequestDeployment(context.Background(), userID, "todo app")
		require.Error(t, err)
		require.True(t, appErr.IsCode(err, appErr.CodeUnavailable))
		mock.AssertExpectationsForObjects(t, projectRepo, taskRepo, queue)
	})
}
