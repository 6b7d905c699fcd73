package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/appforge/engine/internal/api/middleware"
	"github.com/appforge/engine/internal/api/types"
	"github.com/appforge/engine/internal/models"
	"github.com/appforge/engine/internal/services"
)

type CredentialsHandler struct {
	credSvc services.CredentialService
}

func NewCredentialsHandler(credSvc services.CredentialService) *CredentialsHandler {
	return &CredentialsHandler{credSvc: credSvc}
}

func (h *CredentialsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req types.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		writeErrorStr(w, http.StatusUnauthorized, "invalid user id")
		return
	}

	cred, err := h.credSvc.Save(r.Context(), userID, &services.SaveCredentialsInput{
		GitHubToken:     req.GitHubToken,
		GitHubUsername:  req.GitHubUsername,
		VercelToken:     req.VercelToken,
		VercelTeamID:    req.VercelTeamID,
		SupabaseURL:     req.SupabaseURL,
		SupabaseAnonKey: req.SupabaseAnonKey,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: maskCredential(cred)})
}

func (h *CredentialsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		writeErrorStr(w, http.StatusUnauthorized, "invalid user id")
		return
	}
	cred, err := h.credSvc.Get(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: maskCredential(cred)})
}

// maskCredential never echoes token material, only whether each one is set.
func maskCredential(c *models.Credential) map[string]any {
	return map[string]any{
		"github_token_set":      c.GitHubToken != "",
		"github_username":       c.GitHubUsername,
		"vercel_token_set":      c.VercelToken != "",
		"vercel_team_id":        c.VercelTeamID,
		"supabase_url":          c.SupabaseURL,
		"supabase_anon_key_set": c.SupabaseAnonKey != "",
		"updated_at":            c.UpdatedAt,
	}
}
