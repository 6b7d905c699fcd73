package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appforge/engine/internal/api/middleware"
	"github.com/appforge/engine/internal/api/types"
	"github.com/appforge/engine/internal/services"
)

type TasksHandler struct {
	projectSvc services.ProjectService
}

func NewTasksHandler(projectSvc services.ProjectService) *TasksHandler {
	return &TasksHandler{projectSvc: projectSvc}
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		writeErrorStr(w, http.StatusUnauthorized, "invalid user id")
		return
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, err := h.projectSvc.GetTask(r.Context(), taskID, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: task})
}
