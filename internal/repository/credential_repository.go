package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/appforge/engine/internal/models"
	appErr "github.com/appforge/engine/pkg/errors"
)

type CredentialRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID, dest *models.Credential) error
	Upsert(ctx context.Context, cred *models.Credential) error
}

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) GetByUser(ctx context.Context, userID uuid.UUID, dest *models.Credential) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(dest).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "credentials not configured")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get credentials failed")
	}
	return nil
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"github_token", "github_username", "vercel_token", "vercel_team_id",
			"supabase_url", "supabase_anon_key", "updated_at",
		}),
	}).Create(cred).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "upsert credentials failed")
	}
	return nil
}
