package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/appforge/engine/internal/api/middleware"
	"github.com/appforge/engine/internal/api/types"
	"github.com/appforge/engine/internal/services"
)

type DeploymentsHandler struct {
	deploySvc services.DeployService
}

func NewDeploymentsHandler(deploySvc services.DeployService) *DeploymentsHandler {
	return &DeploymentsHandler{deploySvc: deploySvc}
}

// Create accepts a free-text requirement and enqueues a pipeline run.
// Responds 202: the work happens on the worker, progress is read from the
// project's log endpoint.
func (h *DeploymentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.DeploymentCreateRequest
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

	project, task, err := h.deploySvc.RequestDeployment(r.Context(), userID, req.Requirement)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, types.APIResponse{
		Success: true,
		Data: map[string]any{
			"project_id": project.ID,
			"task_id":    task.ID,
			"status":     project.Status,
		},
	})
}
