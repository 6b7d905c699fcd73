package models

import (
	"time"

	"github.com/google/uuid"
)

// Task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// Task is the claim unit for one pipeline run. One-to-one with a Project;
// tracks the run itself separately from the project's business fields.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID   uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"project_id" validate:"required"`
	UserID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id" validate:"required"`
	Status      string     `gorm:"type:varchar(16);index;not null" json:"status" validate:"required,oneof=pending processing completed failed"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
