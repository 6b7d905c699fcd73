package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/appforge/engine/pkg/config"
	"github.com/appforge/engine/pkg/database"
	"github.com/appforge/engine/pkg/logger"

	"github.com/appforge/engine/internal/analyzer"
	"github.com/appforge/engine/internal/llm"
	"github.com/appforge/engine/internal/notify"
	"github.com/appforge/engine/internal/pipeline"
	"github.com/appforge/engine/internal/platform/vercel"
	"github.com/appforge/engine/internal/queue/tasks"
	"github.com/appforge/engine/internal/repository"
	"github.com/appforge/engine/internal/scm/github"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
		},
	)

	// Initialize DB and repositories for task handlers
	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.L().Fatal("failed to open database", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	logRepo := repository.NewDeploymentLogRepository(db)
	credRepo := repository.NewCredentialRepository(db)

	// Completion service behind the requirement analyzer
	llmClient, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel)
	if err != nil {
		logger.L().Fatal("failed to build completion client", zap.Error(err))
	}
	specAnalyzer := analyzer.New(llmClient)

	// Per-run clients: each run acts with the requesting user's tokens.
	poll := vercel.PollConfig{
		Timeout:      cfg.DeployPollTimeout,
		InitialDelay: cfg.DeployPollInitialDelay,
	}
	newSCM := func(creds pipeline.Credentials) github.Client {
		return github.NewClient(cfg.GitHubAPIURL, creds.GitHubToken, creds.GitHubUsername)
	}
	newPlatform := func(creds pipeline.Credentials) vercel.Client {
		return vercel.NewClient(cfg.VercelAPIURL, creds.VercelToken, creds.VercelTeamID, poll)
	}

	sender := notify.NewSMTPSender(notify.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	})

	engine := pipeline.NewEngine(specAnalyzer, newSCM, newPlatform, sender, projectRepo, taskRepo, logRepo)

	handler := tasks.NewDeployTaskHandler(engine, taskRepo, projectRepo, userRepo, credRepo)
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeDeploymentRun, handler.HandleDeploy)

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.L().Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.L().Error("worker stopped with error", zap.Error(err))
	}

	// Allow in-flight tasks to finish gracefully
	srv.Shutdown()
}
