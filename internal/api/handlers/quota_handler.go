package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/appforge/engine/internal/api/middleware"
	"github.com/appforge/engine/internal/api/types"
	"github.com/appforge/engine/internal/services"
)

type QuotaHandler struct {
	quotaSvc services.QuotaService
}

func NewQuotaHandler(quotaSvc services.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaSvc: quotaSvc}
}

func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		writeErrorStr(w, http.StatusUnauthorized, "invalid user id")
		return
	}
	profile, err := h.quotaSvc.GetQuota(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	remaining := profile.DailyRequestLimit - profile.DailyRequestCount
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data: map[string]any{
			"daily_request_count": profile.DailyRequestCount,
			"daily_request_limit": profile.DailyRequestLimit,
			"remaining":           remaining,
			"last_request_date":   profile.LastRequestDate.Format("2006-01-02"),
		},
	})
}
