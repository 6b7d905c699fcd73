package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/appforge/engine/internal/api"
	"github.com/appforge/engine/internal/api/handlers"
	"github.com/appforge/engine/internal/llm"
	"github.com/appforge/engine/internal/repository"
	"github.com/appforge/engine/internal/services"
	"github.com/appforge/engine/pkg/config"
	"github.com/appforge/engine/pkg/database"
	"github.com/appforge/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting AppForge Engine API",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	logRepo := repository.NewDeploymentLogRepository(db)
	credRepo := repository.NewCredentialRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)

	// Queue client for enqueuing pipeline runs
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer queueClient.Close()

	// Completion service (chat endpoint)
	llmClient, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel)
	if err != nil {
		log.Fatal("Failed to build completion client", zap.Error(err))
	}

	// Services
	deploySvc := services.NewDeployService(projectRepo, taskRepo, credRepo, quotaRepo, queueClient, cfg.DailyRequestLimit)
	projectSvc := services.NewProjectService(projectRepo, taskRepo, logRepo)
	credSvc := services.NewCredentialService(credRepo)
	quotaSvc := services.NewQuotaService(quotaRepo, cfg.DailyRequestLimit)

	// JWT Secret from environment
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		log.Warn("JWT_SECRET not set, using default (INSECURE for production)")
		jwtSecret = []byte("change-me-in-production-please")
	}

	// Create router with dependencies
	router := api.NewRouter(api.Dependencies{
		HMACSecret:         jwtSecret,
		AuthHandler:        handlers.NewAuthHandler(userRepo, jwtSecret),
		ProjectsHandler:    handlers.NewProjectsHandler(projectSvc),
		DeploymentsHandler: handlers.NewDeploymentsHandler(deploySvc),
		TasksHandler:       handlers.NewTasksHandler(projectSvc),
		CredentialsHandler: handlers.NewCredentialsHandler(credSvc),
		QuotaHandler:       handlers.NewQuotaHandler(quotaSvc),
		ChatHandler:        handlers.NewChatHandler(llmClient),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
