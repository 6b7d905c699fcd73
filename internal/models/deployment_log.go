package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Log levels for deployment log entries.
const (
	LogLevelInfo    = "info"
	LogLevelSuccess = "success"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// DeploymentLog is one append-only progress entry for a project's pipeline
// run. Entries are never mutated; ordered by CreatedAt they form the audit
// trail. PhaseNumber 0 is reserved for pipeline-level fatal errors.
type DeploymentLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID   uuid.UUID      `gorm:"type:uuid;index;not null" json:"project_id" validate:"required"`
	Phase       string         `gorm:"type:varchar(32);not null" json:"phase"`
	PhaseNumber int            `gorm:"not null" json:"phase_number" validate:"gte=0,lte=5"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	Level       string         `gorm:"type:varchar(16);not null" json:"level" validate:"required,oneof=info success warning error"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}
