package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/appforge/engine/internal/models"
	"github.com/appforge/engine/internal/repository"
	appErr "github.com/appforge/engine/pkg/errors"
)

// SaveCredentialsInput carries the tokens a user submits. Empty fields keep
// the stored value so a user can rotate one token without re-entering all.
type SaveCredentialsInput struct {
	GitHubToken     string
	GitHubUsername  string
	VercelToken     string
	VercelTeamID    string
	SupabaseURL     string
	SupabaseAnonKey string
}

type CredentialService interface {
	Save(ctx context.Context, userID uuid.UUID, input *SaveCredentialsInput) (*models.Credential, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Credential, error)
}

type credentialService struct {
	credRepo repository.CredentialRepository
}

func NewCredentialService(credRepo repository.CredentialRepository) CredentialService {
	return &credentialService{credRepo: credRepo}
}

var _ CredentialService = (*credentialService)(nil)

func (s *credentialService) Save(ctx context.Context, userID uuid.UUID, input *SaveCredentialsInput) (*models.Credential, error) {
	cred := models.Credential{UserID: userID}
	if err := s.credRepo.GetByUser(ctx, userID, &cred); err != nil && !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}

	overlay := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	overlay(&cred.GitHubToken, input.GitHubToken)
	overlay(&cred.GitHubUsername, input.GitHubUsername)
	overlay(&cred.VercelToken, input.VercelToken)
	overlay(&cred.VercelTeamID, input.VercelTeamID)
	overlay(&cred.SupabaseURL, input.SupabaseURL)
	overlay(&cred.SupabaseAnonKey, input.SupabaseAnonKey)

	if err := s.credRepo.Upsert(ctx, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *credentialService) Get(ctx context.Context, userID uuid.UUID) (*models.Credential, error) {
	var cred models.Credential
	if err := s.credRepo.GetByUser(ctx, userID, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}
