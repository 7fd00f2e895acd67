package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vanishlabs/vanish/internal/api/middleware"
	"github.com/vanishlabs/vanish/internal/chat"
	"github.com/vanishlabs/vanish/internal/models"
)

// SendMessageRequest represents the send message request body. Content is
// ciphertext and the encryption key is opaque; the server stores both as-is.
type SendMessageRequest struct {
	Content         string `json:"content"`
	ContentType     string `json:"content_type,omitempty"`
	MediaURL        string `json:"media_url,omitempty"`
	EncryptionKey   string `json:"encryption_key"`
	ExpireAfter     *int64 `json:"expire_after,omitempty"` // seconds
	ExpireAfterRead bool   `json:"expire_after_read,omitempty"`
}

// SendMessageResponse represents the send message response.
type SendMessageResponse struct {
	MessageID     string `json:"message_id"`
	EncryptionKey string `json:"encryption_key"`
	CreatedAt     string `json:"created_at"`
}

// MessageListResponse represents the message list response.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

// SendMessage handles appending a message to a session.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
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

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.engine.Send(r.Context(), sessionID, user.ID, chat.SendInput{
		Content:       req.Content,
		ContentType:   models.ContentType(req.ContentType),
		MediaURL:      req.MediaURL,
		EncryptionKey: req.EncryptionKey,
		ExpireAfter:   req.ExpireAfter,
		ExpireOnRead:  req.ExpireAfterRead,
	})
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, SendMessageResponse{
		MessageID:     msg.ID,
		EncryptionKey: req.EncryptionKey,
		CreatedAt:     msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// ListMessages returns a page of session messages, newest first.
// Query params: limit (default 20, max 100) and offset.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
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

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	messages, err := h.engine.ListMessages(r.Context(), sessionID, user.ID, limit, offset)
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

// MarkRead records that the caller read a message. For burn-on-read messages
// this arms the purge deadline and returns the resulting receipt.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID := chi.URLParam(r, "id")
	if err := h.engine.MarkRead(r.Context(), messageID, user.ID); err != nil {
		h.AppError(w, err)
		return
	}

	// Receipt exists only for burn-on-read messages.
	receipt, err := h.engine.GetReadReceipt(r.Context(), messageID, user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if receipt == nil {
		h.JSON(w, http.StatusOK, map[string]bool{"read": true})
		return
	}
	h.JSON(w, http.StatusOK, receipt)
}

// DeleteMessage soft-deletes a message: sender only, leaves a tombstone.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.engine.SoftDelete(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// BurnMessage physically purges a single message when the caller is entitled
// to: the sender always, a member once the message is expired or past its
// burn-on-read deadline.
func (h *Handler) BurnMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.engine.Burn(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"burned": true})
}
