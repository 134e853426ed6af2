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

// NoteService defines the note operations required by NoteHandler.
type NoteService interface {
	List(ctx context.Context, userID string, sort repository.Sort) ([]models.Note, error)
	Search(ctx context.Context, userID, q string) ([]models.Note, error)
	Create(ctx context.Context, userID string, n models.Note) (*models.Note, error)
	Update(ctx context.Context, userID, id string, p models.NotePatch) (*models.Note, error)
	Delete(ctx context.Context, userID, id string) error
}

// NoteHandler serves the /api/notes routes.
type NoteHandler struct {
	Notes NoteService
	Log   *zap.Logger
}

type idResponse struct {
	ID string `json:"id"`
}

// List handles GET /api/notes?sort=field&order=asc|desc.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Notes.List(r.Context(), middleware.GetUserIDFromContext(r.Context()), sortFromQuery(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// Search handles GET /api/notes/search?q=.
func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Notes.Search(r.Context(), middleware.GetUserIDFromContext(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// Create handles POST /api/notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		IsPublic bool   `json:"isPublic"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	n, err := h.Notes.Create(r.Context(), middleware.GetUserIDFromContext(r.Context()), models.Note{
		Title:    req.Title,
		Content:  req.Content,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Update handles PUT /api/notes/{id}. Absent fields are left unchanged.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p models.NotePatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	n, err := h.Notes.Update(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Delete handles DELETE /api/notes/{id}.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Notes.Delete(r.Context(), middleware.GetUserIDFromContext(r.Context()), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id})
}

func sortFromQuery(r *http.Request) repository.Sort {
	q := r.URL.Query()
	return repository.Sort{Field: q.Get("sort"), Direction: q.Get("order")}
}
