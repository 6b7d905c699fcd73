package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appforge/engine/internal/api/middleware"
	"github.com/appforge/engine/internal/api/types"
	"github.com/appforge/engine/internal/services"
)

type ProjectsHandler struct {
	projectSvc services.ProjectService
}

func NewProjectsHandler(projectSvc services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projectSvc: projectSvc}
}

func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		writeErrorStr(w, http.StatusUnauthorized, "invalid user id")
		return
	}
	items, err := h.projectSvc.ListProjects(r.Context(), userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	end := start + size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    items[start:end],
		Meta:    &types.Meta{Page: page, PageSize: size, Total: int64(len(items))},
	})
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.ids(w, r)
	if !ok {
		return
	}
	p, err := h.projectSvc.GetProject(r.Context(), projectID, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: p})
}

// Logs returns the pipeline audit trail for one project in append order.
func (h *ProjectsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.ids(w, r)
	if !ok {
		return
	}
	logs, err := h.projectSvc.GetProjectLogs(r.Context(), projectID, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: logs})
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.ids(w, r)
	if !ok {
		return
	}
	if err := h.projectSvc.DeleteProject(r.Context(), projectID, userID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

func (h *ProjectsHandler) ids(w http.ResponseWriter, r *http.Request) (userID, projectID uuid.UUID, ok bool) {
	userID, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		writeErrorStr(w, http.StatusUnauthorized, "invalid user id")
		return uuid.Nil, uuid.Nil, false
	}
	projectID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, projectID, true
}
