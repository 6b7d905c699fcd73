package tasks

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
	"github.com/appforge/engine/internal/pipeline"
	appErr "github.com/appforge/engine/pkg/errors"
	"github.com/appforge/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests (required by the handler)
	_, err := logger.Init("info", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// Mock implementations

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, run pipeline.Context) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

type mockTaskRepository struct {
	mock.Mock
}

func (m *mockTaskRepository) Create(ctx context.Context, obj *models.Task) error {
	args := m.Called(ctx, obj)
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

type mockProjectRepository struct {
	mock.Mock
}

func (m *mockProjectRepository) Create(ctx context.Context, obj *models.Project) error {
	args := m.Called(ctx, obj)
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

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, obj *models.User) error {
	args := m.Called(ctx, obj)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id any, dest *models.User) error {
	args := m.Called(ctx, id, dest)
	if args.Error(0) == nil && args.Get(1) != nil {
		src := args.Get(1).(*models.User)
		*dest = *src
	}
	return args.Error(0)
}

func (m *mockUserRepository) Update(ctx context.Context, obj *models.User) error {
	args := m.Called(ctx, obj)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id any) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string, dest *models.User) error {
	args := m.Called(ctx, email, dest)
	if args.Error(0) == nil && args.Get(1) != nil {
		src := args.Get(1).(*models.User)
		*dest = *src
	}
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

func TestDeployTaskHandler_HandleDeploy(t *testing.T) {
	taskID := uuid.New()
	projectID := uuid.New()
	userID := uuid.New()

	newMocks := func() (*mockRunner, *mockTaskRepository, *mockProjectRepository, *mockUserRepository, *mockCredentialRepository, *DeployTaskHandler) {
		runner := &mockRunner{}
		taskRepo := &mockTaskRepository{}
		projectRepo := &mockProjectRepository{}
		userRepo := &mockUserRepository{}
		credRepo := &mockCredentialRepository{}
		handler := NewDeployTaskHandler(runner, taskRepo, projectRepo, userRepo, credRepo)
		return runner, taskRepo, projectRepo, userRepo, credRepo, handler
	}

	task := &models.Task{ID: taskID, ProjectID: projectID, UserID: userID, Status: models.TaskStatusPending}
	project := &models.Project{
		ID:          projectID,
		UserID:      userID,
		Requirement: "I need a todo app",
		Status:      models.ProjectStatusPending,
	}
	user := &models.User{ID: userID, Email: "dev@example.com", Name: "Dev"}
	cred := &models.Credential{
		UserID:          userID,
		GitHubToken:     "gh_tok",
		GitHubUsername:  "octo",
		VercelToken:     "vc_tok",
		SupabaseURL:     "https://db.supabase.co",
		SupabaseAnonKey: "anon",
	}

	t.Run("successful deploy", func(t *testing.T) {
		runner, taskRepo, projectRepo, userRepo, credRepo, handler := newMocks()

		asynqTask, err := NewDeployTask(taskID)
		require.NoError(t, err)

		taskRepo.On("GetByID", mock.Anything, taskID, &models.Task{}).Return(nil, task).Once()
		projectRepo.On("GetByID", mock.Anything, projectID, &models.Project{}).Return(nil, project).Once()
		userRepo.On("GetByID", mock.Anything, userID, &models.User{}).Return(nil, user).Once()
		credRepo.On("GetByUser", mock.Anything, userID, &models.Credential{}).Return(nil, cred).Once()

		runner.On("Run", mock.Anything, mock.MatchedBy(func(run pipeline.Context) bool {
			return run.ProjectID == projectID &&
				run.TaskID == taskID &&
				run.UserID == userID &&
				run.UserEmail == "dev@example.com" &&
				run.Requirement == "I need a todo app" &&
				run.Credentials.GitHubToken == "gh_tok" &&
				run.Credentials.SupabaseAnonKey == "anon"
		})).Return(nil).Once()

		require.NoError(t, handler.HandleDeploy(context.Background(), asynqTask))
		mock.AssertExpectationsForObjects(t, runner, taskRepo, projectRepo, userRepo, credRepo)
	})

	t.Run("missing credentials", func(t *testing.T) {
		runner, taskRepo, projectRepo, userRepo, credRepo, handler := newMocks()

		asynqTask, err := NewDeployTask(taskID)
		require.NoError(t, err)

		taskRepo.On("GetByID", mock.Anything, taskID, &models.Task{}).Return(nil, task).Once()
		projectRepo.On("GetByID", mock.Anything, projectID, &models.Project{}).Return(nil, project).Once()
		userRepo.On("GetByID", mock.Anything, userID, &models.User{}).Return(nil, user).Once()
		credRepo.On("GetByUser", mock.Anything, userID, &models.Credential{}).
			Return(appErr.New(appErr.CodeNotFound, "credentials not configured"), nil).Once()

		err = handler.HandleDeploy(context.Background(), asynqTask)
		require.Error(t, err)
		require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
		runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("malformed payload", func(t *testing.T) {
		runner, _, _, _, _, handler := newMocks()

		err := handler.HandleDeploy(context.Background(), asynq.NewTask(TypeDeploymentRun, []byte("not-json")))
		require.Error(t, err)
		runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("unknown task id", func(t *testing.T) {
		runner, taskRepo, _, _, _, handler := newMocks()

		asynqTask, err := NewDeployTask(taskID)
		require.NoError(t, err)

		taskRepo.On("GetByID", mock.Anything, taskID, &models.Task{}).
			Return(appErr.New(appErr.CodeNotFound, "entity not found"), nil).Once()

		err = handler.HandleDeploy(context.Background(), asynqTask)
		require.Error(t, err)
		require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
		runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})
}
