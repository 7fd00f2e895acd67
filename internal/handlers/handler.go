package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vanishlabs/vanish/internal/chat"
	"github.com/vanishlabs/vanish/internal/store"
	apperrors "github.com/vanishlabs/vanish/pkg/errors"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	engine *chat.Engine
	db     store.DataStore
	redis  *store.RedisStore
}

// NewHandler creates a new Handler. redis may be nil.
func NewHandler(engine *chat.Engine, db store.DataStore, redis *store.RedisStore) *Handler {
	return &Handler{engine: engine, db: db, redis: redis}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// AppError translates an engine error into an HTTP response. Internal errors
// never leak their cause to the client.
func (h *Handler) AppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperrors.CodeValidation:
		status = http.StatusBadRequest
	case apperrors.CodeForbidden, apperrors.CodeNotEligible:
		status = http.StatusForbidden
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeConflict:
		status = http.StatusConflict
	}

	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.JSON(w, status, map[string]string{
		"error": message,
		"code":  string(appErr.Code),
	})
}
