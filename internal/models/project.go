package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Project statuses. A project is terminal once success or failed.
const (
	ProjectStatusPending    = "pending"
	ProjectStatusProcessing = "processing"
	ProjectStatusSuccess    = "success"
	ProjectStatusFailed     = "failed"
)

// Project represents one requested application: the user's free-text
// requirement plus everything the pipeline derives from it.
type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id" validate:"required"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Requirement string    `gorm:"type:text;not null" json:"requirement" validate:"required"`
	Framework   string    `gorm:"type:varchar(32)" json:"framework"`
	Status      string    `gorm:"type:varchar(16);index;not null" json:"status" validate:"required,oneof=pending processing success failed"`

	RepoURL       string         `gorm:"type:text" json:"repo_url"`
	DeploymentURL string         `gorm:"type:text" json:"deployment_url"`
	Features      datatypes.JSON `gorm:"type:jsonb" json:"features"`
	TechStack     datatypes.JSON `gorm:"type:jsonb" json:"tech_stack"`
	ErrorMessage  string         `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
