// Package http provides the REST handlers and router of the LittleHelper API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/atinyakov/LittleHelper/internal/common"
	"go.uber.org/zap"
)

// maxBodyBytes caps decoded request bodies.
const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, messageResponse{Message: msg})
}

// writeError maps the sentinel behind err to a status code. Storage and
// unknown failures are logged and answered without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var code int
	switch {
	case errors.Is(err, common.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		code = http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, common.ErrConflict):
		code = http.StatusConflict
	default:
		log.Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeMessage(w, code, err.Error())
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", common.ErrValidation)
	}
	return nil
}
