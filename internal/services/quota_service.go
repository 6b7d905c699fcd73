package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/engine/internal/models"
	"github.com/appforge/engine/internal/repository"
)

type QuotaService interface {
	// GetQuota returns today's bucket, rolling the counter over first if the
	// last request was on an earlier day.
	GetQuota(ctx context.Context, userID uuid.UUID) (*models.QuotaProfile, error)
}

type quotaService struct {
	quotaRepo  repository.QuotaRepository
	dailyLimit int
}

func NewQuotaService(quotaRepo repository.QuotaRepository, dailyLimit int) QuotaService {
	return &quotaService{quotaRepo: quotaRepo, dailyLimit: dailyLimit}
}

var _ QuotaService = (*quotaService)(nil)

func (s *quotaService) GetQuota(ctx context.Context, userID uuid.UUID) (*models.QuotaProfile, error) {
	var profile models.QuotaProfile
	if err := s.quotaRepo.GetOrCreate(ctx, userID, s.dailyLimit, &profile); err != nil {
		return nil, err
	}
	if err := s.quotaRepo.ResetIfStale(ctx, userID, time.Now()); err != nil {
		return nil, err
	}
	// Re-read so a rollover is reflected in the response.
	if err := s.quotaRepo.GetOrCreate(ctx, userID, s.dailyLimit, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
