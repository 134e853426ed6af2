package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/service"
	"go.uber.org/zap"
)

// AdminService defines the maintenance operations required by AdminHandler.
type AdminService interface {
	Contents(ctx context.Context, limit int) (*service.Contents, error)
	DeleteAllUsers(ctx context.Context, confirmation string) (int64, error)
}

// AdminHandler serves the /api/db routes. They sit behind the admin key.
type AdminHandler struct {
	Admin AdminService
	Log   *zap.Logger
}

// Contents handles GET /api/db/contents?limit=.
func (h *AdminHandler) Contents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.Log, fmt.Errorf("%w: limit must be a non-negative integer", common.ErrValidation))
			return
		}
		limit = n
	}
	c, err := h.Admin.Contents(r.Context(), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteAllUsers handles DELETE /api/db/delete-all-users.
func (h *AdminHandler) DeleteAllUsers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfirmationCode string `json:"confirmationCode"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	n, err := h.Admin.DeleteAllUsers(r.Context(), req.ConfirmationCode)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "All users deleted",
		"deletedCount": n,
	})
}
