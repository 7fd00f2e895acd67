package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/vanishlabs/vanish/internal/api/middleware"
	"github.com/vanishlabs/vanish/internal/models"
)

// Sweep runs one batch sweep over all purgeable messages.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Sweep(r.Context())
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, result)
}

// Maintenance runs the session and membership maintenance pass.
func (h *Handler) Maintenance(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Maintain(r.Context())
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, result)
}

// CreateUserRequest represents the admin user provisioning request body.
type CreateUserRequest struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

// CreateUserResponse carries the new user and its API token. The token is
// returned exactly once; only its hash is stored.
type CreateUserResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// CreateUser provisions a user and issues its API token.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	username := sanitizeName(req.Username)
	if username == "" {
		h.Error(w, http.StatusBadRequest, "username is required")
		return
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	token := hex.EncodeToString(tokenBytes)

	user, err := h.db.CreateUser(r.Context(), username, req.Avatar, middleware.TokenHash(token), req.IsAdmin)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.JSON(w, http.StatusCreated, CreateUserResponse{User: user, Token: token})
}

// sanitizeName trims and limits a name to 100 characters, removing control
// characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}
