package pipeline

import (
	"github.com/google/uuid"

	appErr "github.com/appforge/engine/pkg/errors"
)

// Credentials is the read-only bundle of third-party tokens a run acts with.
// The pipeline never mutates it.
type Credentials struct {
	GitHubToken    string
	GitHubUsername string
	VercelToken    string
	VercelTeamID   string

	// Optional database project injected into the deployed app.
	SupabaseURL     string
	SupabaseAnonKey string
}

// Context is the fully-typed input for one pipeline run, validated once at
// construction time.
type Context struct {
	ProjectID   uuid.UUID
	TaskID      uuid.UUID
	UserID      uuid.UUID
	UserEmail   string
	Requirement string
	Credentials Credentials
}

// Validate checks every field a run cannot proceed without.
func (c *Context) Validate() error {
	switch {
	case c.ProjectID == uuid.Nil:
		return appErr.New(appErr.CodeInvalid, "pipeline context missing project id")
	case c.TaskID == uuid.Nil:
		return appErr.New(appErr.CodeInvalid, "pipeline context missing task id")
	case c.UserID == uuid.Nil:
		return appErr.New(appErr.CodeInvalid, "pipeline context missing user id")
	case c.Requirement == "":
		return appErr.New(appErr.CodeInvalid, "pipeline context missing requirement")
	case c.Credentials.GitHubToken == "":
		return appErr.New(appErr.CodeInvalid, "github token is required")
	case c.Credentials.VercelToken == "":
		return appErr.New(appErr.CodeInvalid, "vercel token is required")
	}
	return nil
}
