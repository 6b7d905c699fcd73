package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/appforge/engine/internal/models"
	appErr "github.com/appforge/engine/pkg/errors"
)

type QuotaRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, defaultLimit int, dest *models.QuotaProfile) error
	// ResetIfStale zeroes the counter when last_request_date is before today.
	// Must run before Consume so the limit is evaluated against today's bucket.
	ResetIfStale(ctx context.Context, userID uuid.UUID, today time.Time) error
	// Consume atomically increments the counter iff it is under the limit.
	// Returns false without error when the quota is exhausted.
	Consume(ctx context.Context, userID uuid.UUID, today time.Time) (bool, error)
}

type quotaRepository struct {
	db *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

func (r *quotaRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, defaultLimit int, dest *models.QuotaProfile) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(dest).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return appErr.Wrap(err, appErr.CodeInternal, "get quota profile failed")
	}
	*dest = models.QuotaProfile{
		UserID:            userID,
		DailyRequestCount: 0,
		DailyRequestLimit: defaultLimit,
		LastRequestDate:   time.Now().Truncate(24 * time.Hour),
	}
	if err := r.db.WithContext(ctx).Create(dest).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create quota profile failed")
	}
	return nil
}

func (r *quotaRepository) ResetIfStale(ctx context.Context, userID uuid.UUID, today time.Time) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE quota_profiles
		 SET daily_request_count = 0, last_request_date = ?, updated_at = NOW()
		 WHERE user_id = ? AND last_request_date < ?`,
		today.Format("2006-01-02"), userID, today.Format("2006-01-02"),
	)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "reset quota profile failed")
	}
	return nil
}

func (r *quotaRepository) Consume(ctx context.Context, userID uuid.UUID, today time.Time) (bool, error) {
	// Single conditional UPDATE so two racing requests cannot both pass
	// with only one slot left.
	res := r.db.WithContext(ctx).Exec(
		`UPDATE quota_profiles
		 SET daily_request_count = daily_request_count + 1, last_request_date = ?, updated_at = NOW()
		 WHERE user_id = ? AND daily_request_count < daily_request_limit`,
		today.Format("2006-01-02"), userID,
	)
	if res.Error != nil {
		return false, appErr.Wrap(res.Error, appErr.CodeInternal, "consume quota failed")
	}
	return res.RowsAffected > 0, nil
}
