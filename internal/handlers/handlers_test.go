package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanishlabs/vanish/internal/api"
	"github.com/vanishlabs/vanish/internal/api/middleware"
	"github.com/vanishlabs/vanish/internal/chat"
	"github.com/vanishlabs/vanish/internal/models"
	"github.com/vanishlabs/vanish/internal/store"
)

type apiEnv struct {
	server *httptest.Server
	db     *store.SQLiteStore
	admin  userCred
	alice  userCred
	bob    userCred
}

type userCred struct {
	user  *models.User
	token string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	engine := chat.NewEngine(db, nil, zerolog.Nop(), chat.Options{
		ReadBurnGrace: 5 * time.Minute,
	})

	router := api.NewRouter(zerolog.Nop(), engine, db, nil, 0)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	env := &apiEnv{server: server, db: db}
	env.admin = env.createUser(t, "admin", true)
	env.alice = env.createUser(t, "alice", false)
	env.bob = env.createUser(t, "bob", false)
	return env
}

func (env *apiEnv) createUser(t *testing.T, name string, admin bool) userCred {
	t.Helper()
	token := "token-" + name
	user, err := env.db.CreateUser(context.Background(), name, "", middleware.TokenHash(token), admin)
	require.NoError(t, err)
	return userCred{user: user, token: token}
}

// do performs a request as the given user and decodes the JSON response.
func (env *apiEnv) do(t *testing.T, cred userCred, method, path string, body any, out any) *http.Response {
	t.Helper()

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, env.server.URL+path, bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cred.token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// startSession creates the alice/bob session and returns its ID.
func (env *apiEnv) startSession(t *testing.T) string {
	t.Helper()
	var created struct {
		SessionID string `json:"session_id"`
	}
	resp := env.do(t, env.alice, "POST", "/sessions", map[string]any{
		"target_user_id": env.bob.user.ID.String(),
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return created.SessionID
}

// sendMessage sends a message from cred and returns its ID.
func (env *apiEnv) sendMessage(t *testing.T, cred userCred, sessionID string, body map[string]any) string {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	if _, ok := body["content"]; !ok {
		body["content"] = "ciphertext"
	}
	if _, ok := body["encryption_key"]; !ok {
		body["encryption_key"] = "key-material"
	}
	var sent struct {
		MessageID string `json:"message_id"`
	}
	resp := env.do(t, cred, "POST", "/sessions/"+sessionID+"/messages", body, &sent)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return sent.MessageID
}

func TestAuth_Required(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, userCred{}, "GET", "/sessions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, userCred{token: "bogus"}, "GET", "/sessions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_Forbidden(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, env.alice, "POST", "/admin/sweep", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateSession_StatusCodes(t *testing.T) {
	env := newAPIEnv(t)

	var created struct {
		SessionID string `json:"session_id"`
		IsNew     bool   `json:"is_new"`
	}
	resp := env.do(t, env.alice, "POST", "/sessions", map[string]any{
		"target_user_id": env.bob.user.ID.String(),
	}, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, created.IsNew)

	// Reuse is a 200, same session.
	var reused struct {
		SessionID string `json:"session_id"`
		IsNew     bool   `json:"is_new"`
	}
	resp = env.do(t, env.bob, "POST", "/sessions", map[string]any{
		"target_user_id": env.alice.user.ID.String(),
	}, &reused)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, reused.IsNew)
	assert.Equal(t, created.SessionID, reused.SessionID)

	// Self chat is a conflict.
	resp = env.do(t, env.alice, "POST", "/sessions", map[string]any{
		"target_user_id": env.alice.user.ID.String(),
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSendMessage_Validation(t *testing.T) {
	env := newAPIEnv(t)
	sid := env.startSession(t)

	resp := env.do(t, env.alice, "POST", "/sessions/"+sid+"/messages", map[string]any{
		"content": "hi",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, env.alice, "POST", "/sessions/"+sid+"/messages", map[string]any{
		"content":        "hi",
		"encryption_key": "k",
		"expire_after":   0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMessageFlow_SendListRead(t *testing.T) {
	env := newAPIEnv(t)
	sid := env.startSession(t)

	msgID := env.sendMessage(t, env.alice, sid, map[string]any{
		"expire_after_read": true,
	})

	var list struct {
		Messages []models.Message `json:"messages"`
	}
	resp := env.do(t, env.bob, "GET", "/sessions/"+sid+"/messages", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, msgID, list.Messages[0].ID)
	require.NotNil(t, list.Messages[0].EncryptionKey)
	assert.Equal(t, "key-material", *list.Messages[0].EncryptionKey)

	// Reading arms the burn-on-read receipt.
	var receipt models.ReadReceipt
	resp = env.do(t, env.bob, "POST", "/messages/"+msgID+"/read", nil, &receipt)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, msgID, receipt.MessageID)
	assert.Equal(t, env.bob.user.ID, receipt.UserID)
	assert.False(t, receipt.WillDeleteAt.IsZero())
}

func TestSoftDeleteAndBurn(t *testing.T) {
	env := newAPIEnv(t)
	sid := env.startSession(t)
	msgID := env.sendMessage(t, env.alice, sid, nil)

	// Recipient cannot soft-delete.
	resp := env.do(t, env.bob, "DELETE", "/messages/"+msgID, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, env.alice, "DELETE", "/messages/"+msgID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A tombstone no longer shows up in the list.
	var list struct {
		Messages []models.Message `json:"messages"`
	}
	resp = env.do(t, env.bob, "GET", "/sessions/"+sid+"/messages", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, list.Messages)

	// Tombstones are burnable by the recipient.
	resp = env.do(t, env.bob, "POST", "/messages/"+msgID+"/burn", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, env.bob, "POST", "/messages/"+msgID+"/read", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBurn_NotEligible(t *testing.T) {
	env := newAPIEnv(t)
	sid := env.startSession(t)
	msgID := env.sendMessage(t, env.alice, sid, map[string]any{
		"expire_after": 3600,
	})

	var errResp struct {
		Code string `json:"code"`
	}
	resp := env.do(t, env.bob, "POST", "/messages/"+msgID+"/burn", nil, &errResp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "NOT_ELIGIBLE", errResp.Code)
}

func TestPinRoutes(t *testing.T) {
	env := newAPIEnv(t)
	sid := env.startSession(t)

	resp := env.do(t, env.alice, "POST", "/sessions/"+sid+"/pin", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Sessions []models.SessionSummary `json:"sessions"`
	}
	resp = env.do(t, env.alice, "GET", "/sessions", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Sessions, 1)
	assert.True(t, list.Sessions[0].IsPinned)

	resp = env.do(t, env.alice, "DELETE", "/sessions/"+sid+"/pin", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetUser_Profile(t *testing.T) {
	env := newAPIEnv(t)

	var profile models.Participant
	resp := env.do(t, env.alice, "GET", "/users/"+env.bob.user.ID.String(), nil, &profile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bob", profile.Username)
	assert.Equal(t, env.bob.user.ID, profile.ID)
}

func TestAdmin_ProvisionAndSweep(t *testing.T) {
	env := newAPIEnv(t)

	var created struct {
		User  *models.User `json:"user"`
		Token string       `json:"token"`
	}
	resp := env.do(t, env.admin, "POST", "/admin/users", map[string]any{
		"username": "dave",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.Token)

	// The issued token authenticates immediately.
	dave := userCred{user: created.User, token: created.Token}
	resp = env.do(t, dave, "GET", "/sessions", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var sweep models.SweepResult
	resp = env.do(t, env.admin, "POST", "/admin/sweep", nil, &sweep)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(0), sweep.DeletedCount)

	var maint models.MaintenanceResult
	resp = env.do(t, env.admin, "POST", "/admin/maintenance", nil, &maint)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)

	var health struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
	}
	resp := env.do(t, userCred{}, "GET", "/health", nil, &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "pass", health.Checks["database"].Status)
}

func TestListMessages_Pagination(t *testing.T) {
	env := newAPIEnv(t)
	sid := env.startSession(t)

	for i := 0; i < 5; i++ {
		env.sendMessage(t, env.alice, sid, map[string]any{
			"content": fmt.Sprintf("ciphertext-%d", i),
		})
	}

	var page struct {
		Messages []models.Message `json:"messages"`
	}
	resp := env.do(t, env.bob, "GET", "/sessions/"+sid+"/messages?limit=2&offset=0", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, page.Messages, 2)

	resp = env.do(t, env.bob, "GET", "/sessions/"+sid+"/messages?limit=2&offset=4", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, page.Messages, 1)
}
