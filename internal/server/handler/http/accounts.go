package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/LittleHelper/internal/middleware"
	"github.com/atinyakov/LittleHelper/internal/models"
	"github.com/atinyakov/LittleHelper/internal/service"
	"go.uber.org/zap"
)

// AccountService defines the account operations required by AccountHandler.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Me(ctx context.Context, userID string) (*models.Account, error)
	UpdateColorProfile(ctx context.Context, userID string, profile models.ColorProfile) (*models.Account, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// AccountHandler serves the /api/users routes.
type AccountHandler struct {
	Accounts AccountService
	Log      *zap.Logger
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the account fields and the issued token.
type LoginResponse struct {
	*models.Account
	Token string `json:"token"`
}

// Register handles POST /api/users and /api/users/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	a, err := h.Accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Login handles POST /api/users/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	sess, err := h.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Account: sess.Account, Token: sess.Token})
}

// Me handles GET /api/users/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	a, err := h.Accounts.Me(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateColorProfile handles PATCH /api/users/update-color-profile.
func (h *AccountHandler) UpdateColorProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ColorProfile models.ColorProfile `json:"colorProfile"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	a, err := h.Accounts.UpdateColorProfile(r.Context(), middleware.GetUserIDFromContext(r.Context()), req.ColorProfile)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Color profile updated successfully",
		"colorProfile": a.ColorProfile,
	})
}

// ChangePassword handles PATCH /api/users/change-password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	err := h.Accounts.ChangePassword(r.Context(), middleware.GetUserIDFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}
