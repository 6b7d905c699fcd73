package models

import (
	"time"

	"github.com/google/uuid"
)

// QuotaProfile is the per-user daily request bucket. The counter resets the
// first time a request arrives on a new calendar day (server clock).
type QuotaProfile struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id" validate:"required"`
	DailyRequestCount int       `gorm:"not null;default:0" json:"daily_request_count"`
	DailyRequestLimit int       `gorm:"not null" json:"daily_request_limit" validate:"gte=1"`
	LastRequestDate   time.Time `gorm:"type:date" json:"last_request_date"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
