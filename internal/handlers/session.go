package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vanishlabs/vanish/internal/api/middleware"
	"github.com/vanishlabs/vanish/internal/models"
)

// CreateSessionRequest represents the create session request body.
type CreateSessionRequest struct {
	TargetUserID string `json:"target_user_id"`
	IsEphemeral  *bool  `json:"is_ephemeral,omitempty"`
}

// CreateSessionResponse represents the create session response.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	IsNew     bool   `json:"is_new"`
}

// SessionListResponse represents the session list response.
type SessionListResponse struct {
	Sessions []models.SessionSummary `json:"sessions"`
}

// CreateSession finds or creates the private session between the caller and
// the target user. Returns 201 when a new session was created, 200 when the
// existing one was reused.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	targetID, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid target user ID format")
		return
	}

	ephemeral := true
	if req.IsEphemeral != nil {
		ephemeral = *req.IsEphemeral
	}

	sessionID, isNew, err := h.engine.FindOrCreateSession(r.Context(), user.ID, targetID, ephemeral)
	if err != nil {
		h.AppError(w, err)
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	h.JSON(w, status, CreateSessionResponse{
		SessionID: sessionID.String(),
		IsNew:     isNew,
	})
}

// ListSessions returns the caller's sessions, pinned first, then by recency.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessions, err := h.engine.ListSessions(r.Context(), user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, SessionListResponse{Sessions: sessions})
}

// GetSession returns a single session with its participants, members only.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid session ID format")
		return
	}

	session, err := h.engine.GetSession(r.Context(), sessionID, user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, session)
}

// PinSession pins a session to the top of the caller's list. Idempotent.
func (h *Handler) PinSession(w http.ResponseWriter, r *http.Request) {
	h.setPin(w, r, true)
}

// UnpinSession removes the caller's pin. Idempotent.
func (h *Handler) UnpinSession(w http.ResponseWriter, r *http.Request) {
	h.setPin(w, r, false)
}

func (h *Handler) setPin(w http.ResponseWriter, r *http.Request, pinned bool) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid session ID format")
		return
	}

	if pinned {
		err = h.engine.PinSession(r.Context(), sessionID, user.ID)
	} else {
		err = h.engine.UnpinSession(r.Context(), sessionID, user.ID)
	}
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"pinned": pinned})
}
