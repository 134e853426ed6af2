package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/LittleHelper/internal/middleware"
	"github.com/atinyakov/LittleHelper/internal/models"
	"github.com/atinyakov/LittleHelper/internal/repository"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TaskService defines the task operations required by TaskHandler.
type TaskService interface {
	List(ctx context.Context, userID string, sort repository.Sort) ([]models.Task, error)
	Create(ctx context.Context, userID string, t models.Task) (*models.Task, error)
	Update(ctx context.Context, userID, id string, p models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, userID, id string) error
	Start(ctx context.Context, userID, id string) (*models.Task, error)
	Pause(ctx context.Context, userID, id string) (*models.Task, error)
	Complete(ctx context.Context, userID, id string) (*models.Task, error)
}

// TaskHandler serves the /api/tasks routes.
type TaskHandler struct {
	Tasks TaskService
	Log   *zap.Logger
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.List(r.Context(), middleware.GetUserIDFromContext(r.Context()), sortFromQuery(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	t, err := h.Tasks.Create(r.Context(), middleware.GetUserIDFromContext(r.Context()), models.Task{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// Update handles PUT /api/tasks/{id}. Only title and description change here.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p models.TaskPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	t, err := h.Tasks.Update(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Tasks.Delete(r.Context(), middleware.GetUserIDFromContext(r.Context()), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id})
}

// Start handles PUT /api/tasks/{id}/start.
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Tasks.Start)
}

// Pause handles PUT /api/tasks/{id}/pause.
func (h *TaskHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Tasks.Pause)
}

// Complete handles PUT /api/tasks/{id}/complete.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Tasks.Complete)
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, userID, id string) (*models.Task, error)) {
	t, err := apply(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
