package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/engine/internal/analyzer"
	"github.com/appforge/engine/internal/models"
	"github.com/appforge/engine/internal/notify"
	"github.com/appforge/engine/internal/platform/vercel"
	"github.com/appforge/engine/internal/repository"
	"github.com/appforge/engine/internal/scm/github"
	appErr "github.com/appforge/engine/pkg/errors"
)

// SpecAnalyzer produces a structured project specification from a free-text
// requirement.
type SpecAnalyzer interface {
	Analyze(ctx context.Context, requirement string) (*analyzer.AppSpec, error)
}

// Clients are built per run because they act with the requesting user's
// tokens.
type (
	SCMFactory      func(creds Credentials) github.Client
	PlatformFactory func(creds Credentials) vercel.Client
)

// Engine runs the five pipeline phases strictly in order, persisting project
// and task status transitions and converting the first phase error into a
// terminal failure record. No phase is retried and nothing is rolled back:
// a repository created in phase 3 survives a phase 4 failure.
type Engine struct {
	analyzer    SpecAnalyzer
	newSCM      SCMFactory
	newPlatform PlatformFactory
	sender      notify.Sender

	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	logs     repository.DeploymentLogRepository
}

func NewEngine(
	specAnalyzer SpecAnalyzer,
	newSCM SCMFactory,
	newPlatform PlatformFactory,
	sender notify.Sender,
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	logs repository.DeploymentLogRepository,
) *Engine {
	return &Engine{
		analyzer:    specAnalyzer,
		newSCM:      newSCM,
		newPlatform: newPlatform,
		sender:      sender,
		projects:    projects,
		tasks:       tasks,
		logs:        logs,
	}
}

// Run executes one full pipeline for the given context. The returned error is
// the phase error that terminated the run; by the time it is returned the
// failure has already been persisted, so callers must not retry.
func (e *Engine) Run(ctx context.Context, run Context) error {
	rec := NewRecorder(e.logs, run.ProjectID)

	if err := run.Validate(); err != nil {
		return e.fail(ctx, rec, run, err)
	}

	started := time.Now()
	if err := e.projects.UpdateStatus(ctx, run.ProjectID, models.ProjectStatusProcessing); err != nil {
		return e.fail(ctx, rec, run, err)
	}
	if err := e.tasks.MarkProcessing(ctx, run.TaskID, started); err != nil {
		return e.fail(ctx, rec, run, err)
	}

	spec, err := e.analyzeRequirement(ctx, rec, run)
	if err != nil {
		return e.fail(ctx, rec, run, err)
	}

	e.generateCode(ctx, rec)

	repoURL, err := e.provisionRepository(ctx, rec, run, spec)
	if err != nil {
		return e.fail(ctx, rec, run, err)
	}

	deploymentURL, err := e.provisionDeployment(ctx, rec, run, spec, repoURL)
	if err != nil {
		return e.fail(ctx, rec, run, err)
	}

	completed := time.Now()
	if err := e.projects.MarkSuccess(ctx, run.ProjectID, deploymentURL, completed); err != nil {
		return e.fail(ctx, rec, run, err)
	}
	if err := e.tasks.MarkCompleted(ctx, run.TaskID, completed); err != nil {
		return e.fail(ctx, rec, run, err)
	}

	// Notification is advisory: the run is already a success.
	e.sendNotification(ctx, rec, run, spec, deploymentURL, repoURL)
	return nil
}

func (e *Engine) analyzeRequirement(ctx context.Context, rec *Recorder, run Context) (*analyzer.AppSpec, error) {
	rec.Info(ctx, PhaseRequirements, "analyzing requirement")

	spec, err := e.analyzer.Analyze(ctx, run.Requirement)
	if err != nil {
		return nil, err
	}
	if err := e.projects.SaveAnalysis(ctx, run.ProjectID, spec.ProjectName, spec.Description, spec.Framework, spec.Features, spec.TechStack()); err != nil {
		return nil, err
	}

	rec.Success(ctx, PhaseRequirements, "project name: "+spec.ProjectName)
	rec.Success(ctx, PhaseRequirements, "framework: "+spec.Framework)
	rec.Info(ctx, PhaseRequirements, fmt.Sprintf("needs database: %t", spec.NeedsDatabase))
	return spec, nil
}

// generateCode is a placeholder phase: source generation is deferred to a
// future capability, but the phase is logged so the audit trail keeps its
// numbering.
func (e *Engine) generateCode(ctx context.Context, rec *Recorder) {
	rec.Info(ctx, PhaseCodeGen, "generating application code")
	rec.Success(ctx, PhaseCodeGen, "code generation complete")
}

func (e *Engine) provisionRepository(ctx context.Context, rec *Recorder, run Context, spec *analyzer.AppSpec) (string, error) {
	rec.Info(ctx, PhaseRepository, "creating repository")

	scm := e.newSCM(run.Credentials)
	exists, err := scm.RepositoryExists(ctx, spec.ProjectName)
	if err != nil {
		return "", err
	}
	if exists {
		// No renaming, no suffixing: the collision is terminal.
		return "", appErr.New(appErr.CodeAlreadyExists, fmt.Sprintf("repository %s already exists", spec.ProjectName))
	}

	repoURL, err := scm.CreateRepository(ctx, spec.ProjectName, spec.Description)
	if err != nil {
		return "", err
	}
	if err := e.projects.SaveRepoURL(ctx, run.ProjectID, repoURL); err != nil {
		return "", err
	}

	rec.Success(ctx, PhaseRepository, "repository created: "+repoURL)
	return repoURL, nil
}

func (e *Engine) provisionDeployment(ctx context.Context, rec *Recorder, run Context, spec *analyzer.AppSpec, repoURL string) (string, error) {
	rec.Info(ctx, PhaseDeployment, "creating deployment project")

	platform := e.newPlatform(run.Credentials)
	platformProjectID, err := platform.CreateProject(ctx, spec.ProjectName, repoURL, spec.Framework)
	if err != nil {
		return "", err
	}

	creds := run.Credentials
	if creds.SupabaseURL != "" && creds.SupabaseAnonKey != "" {
		rec.Info(ctx, PhaseDeployment, "configuring environment variables")
		// Registered independently: one failed variable must not block the
		// rest of the set.
		vars := []struct{ key, value string }{
			{"NEXT_PUBLIC_SUPABASE_URL", creds.SupabaseURL},
			{"NEXT_PUBLIC_SUPABASE_ANON_KEY", creds.SupabaseAnonKey},
		}
		for _, v := range vars {
			if err := platform.SetEnvironmentVariable(ctx, platformProjectID, v.key, v.value); err != nil {
				rec.Warning(ctx, PhaseDeployment, "environment variable registration failed: "+v.key, map[string]any{"error": err.Error()})
			}
		}
	}

	rec.Info(ctx, PhaseDeployment, "disabling deployment protection")
	if err := platform.DisableProtection(ctx, platformProjectID); err != nil {
		return "", err
	}

	rec.Info(ctx, PhaseDeployment, "waiting for deployment to become ready")
	deploymentURL, err := platform.AwaitProduction(ctx, platformProjectID, spec.ProjectName)
	if err != nil {
		return "", err
	}

	rec.Success(ctx, PhaseDeployment, "deployed: "+deploymentURL)
	return deploymentURL, nil
}

func (e *Engine) sendNotification(ctx context.Context, rec *Recorder, run Context, spec *analyzer.AppSpec, deploymentURL, repoURL string) {
	rec.Info(ctx, PhaseNotification, "sending notification email")

	if run.UserEmail == "" {
		rec.Warning(ctx, PhaseNotification, "no recipient email on record", nil)
		return
	}
	err := e.sender.SendDeploymentEmail(ctx, notify.DeploymentEmail{
		RecipientEmail: run.UserEmail,
		ProjectName:    spec.ProjectName,
		DeploymentURL:  deploymentURL,
		RepoURL:        repoURL,
		Features:       spec.Features,
		TechStack:      spec.TechStack(),
	})
	if err != nil {
		rec.Warning(ctx, PhaseNotification, "notification email failed: "+err.Error(), nil)
		return
	}
	rec.Success(ctx, PhaseNotification, "notification email sent")
}

func (e *Engine) fail(ctx context.Context, rec *Recorder, run Context, err error) error {
	rec.Error(ctx, PhaseFatal, "deployment failed: "+err.Error(), errorMeta(err))

	completed := time.Now()
	if run.ProjectID != uuid.Nil {
		_ = e.projects.MarkFailed(ctx, run.ProjectID, err.Error(), completed)
	}
	if run.TaskID != uuid.Nil {
		_ = e.tasks.MarkFailed(ctx, run.TaskID, completed)
	}
	return err
}

func errorMeta(err error) map[string]any {
	var ae *appErr.AppError
	if !errors.As(err, &ae) {
		return nil
	}
	meta := map[string]any{"code": string(ae.Code)}
	for k, v := range ae.Meta {
		meta[k] = v
	}
	return meta
}
