package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential stores a user's third-party tokens. Read-only input to the
// pipeline; a run must not start without both GitHubToken and VercelToken.
type Credential struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id" validate:"required"`
	GitHubToken    string    `gorm:"column:github_token;type:text" json:"-"`
	GitHubUsername string    `gorm:"column:github_username;type:varchar(255)" json:"github_username,omitempty"`
	VercelToken    string    `gorm:"type:text" json:"-"`
	VercelTeamID   string    `gorm:"type:varchar(255)" json:"vercel_team_id,omitempty"`

	// Optional database project wired into the deployed app's environment.
	SupabaseURL     string `gorm:"type:text" json:"supabase_url,omitempty"`
	SupabaseAnonKey string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRequiredTokens reports whether the bundle can drive a full pipeline run.
func (c *Credential) HasRequiredTokens() bool {
	return c.GitHubToken != "" && c.VercelToken != ""
}
