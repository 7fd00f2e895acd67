// Package vanish provides a client for the vanish ephemeral messaging API.
package vanish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a vanish API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// NewClient creates a new client authenticating with the given API token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("vanish error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("vanish error %d: %s", e.StatusCode, e.Message)
}

// doRequest performs an HTTP request with bearer auth.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
	}

	return respBody, nil
}

// Participant is a user's public profile.
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	ID                 string      `json:"id"`
	IsEphemeral        bool        `json:"is_ephemeral"`
	LastMessagePreview string      `json:"last_message_preview,omitempty"`
	Peer               Participant `json:"peer"`
	UnreadCount        int64       `json:"unread_count"`
	IsPinned           bool        `json:"is_pinned"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Session is a session with its participants.
type Session struct {
	ID                 string        `json:"id"`
	IsEphemeral        bool          `json:"is_ephemeral"`
	LastMessagePreview string        `json:"last_message_preview,omitempty"`
	Participants       []Participant `json:"participants"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Message is an ephemeral message.
type Message struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	SenderID      string      `json:"sender_id"`
	Sender        Participant `json:"sender"`
	Content       *string     `json:"content,omitempty"`
	ContentType   string      `json:"content_type"`
	MediaURL      *string     `json:"media_url,omitempty"`
	EncryptionKey *string     `json:"encryption_key,omitempty"`
	ExpireAfter   *int64      `json:"expire_after,omitempty"`
	ExpireOnRead  bool        `json:"expire_after_read"`
	IsRead        bool        `json:"is_read"`
	ReadAt        *time.Time  `json:"read_at,omitempty"`
	IsDeleted     bool        `json:"is_deleted"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CreateSessionResponse is the response from finding or creating a session.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	IsNew     bool   `json:"is_new"`
}

// CreateSession finds or creates the session with the target user.
func (c *Client) CreateSession(targetUserID string, ephemeral bool) (*CreateSessionResponse, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"target_user_id": targetUserID,
		"is_ephemeral":   ephemeral,
	})

	respBody, err := c.doRequest("POST", "/sessions", body)
	if err != nil {
		return nil, err
	}

	var resp CreateSessionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions returns the caller's sessions, pinned first.
func (c *Client) ListSessions() ([]SessionSummary, error) {
	respBody, err := c.doRequest("GET", "/sessions", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// GetSession returns a single session with its participants.
func (c *Client) GetSession(sessionID string) (*Session, error) {
	respBody, err := c.doRequest("GET", "/sessions/"+sessionID, nil)
	if err != nil {
		return nil, err
	}

	var resp Session
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PinSession pins a session to the top of the list.
func (c *Client) PinSession(sessionID string) error {
	_, err := c.doRequest("POST", "/sessions/"+sessionID+"/pin", nil)
	return err
}

// UnpinSession removes the pin from a session.
func (c *Client) UnpinSession(sessionID string) error {
	_, err := c.doRequest("DELETE", "/sessions/"+sessionID+"/pin", nil)
	return err
}

// SendMessageRequest is the request body for sending a message. Content is
// ciphertext; EncryptionKey is opaque to the server.
type SendMessageRequest struct {
	Content         string `json:"content"`
	ContentType     string `json:"content_type,omitempty"`
	MediaURL        string `json:"media_url,omitempty"`
	EncryptionKey   string `json:"encryption_key"`
	ExpireAfter     *int64 `json:"expire_after,omitempty"`
	ExpireAfterRead bool   `json:"expire_after_read,omitempty"`
}

// SendMessageResponse is the response from sending a message.
type SendMessageResponse struct {
	MessageID     string `json:"message_id"`
	EncryptionKey string `json:"encryption_key"`
	CreatedAt     string `json:"created_at"`
}

// SendMessage appends a message to a session.
func (c *Client) SendMessage(sessionID string, req SendMessageRequest) (*SendMessageResponse, error) {
	body, _ := json.Marshal(req)

	respBody, err := c.doRequest("POST", "/sessions/"+sessionID+"/messages", body)
	if err != nil {
		return nil, err
	}

	var resp SendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMessages retrieves a page of session messages, newest first.
func (c *Client) GetMessages(sessionID string, limit, offset int) ([]Message, error) {
	path := fmt.Sprintf("/sessions/%s/messages?limit=%d&offset=%d", sessionID, limit, offset)

	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ReadReceipt is the receipt armed when a burn-on-read message is read.
type ReadReceipt struct {
	MessageID    string    `json:"message_id"`
	UserID       string    `json:"user_id"`
	WillDeleteAt time.Time `json:"will_delete_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// MarkRead marks a message read. The returned receipt is nil unless the
// message is burn-on-read.
func (c *Client) MarkRead(messageID string) (*ReadReceipt, error) {
	respBody, err := c.doRequest("POST", "/messages/"+messageID+"/read", nil)
	if err != nil {
		return nil, err
	}

	var receipt ReadReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, err
	}
	if receipt.MessageID == "" {
		return nil, nil
	}
	return &receipt, nil
}

// DeleteMessage soft-deletes a message the caller sent.
func (c *Client) DeleteMessage(messageID string) error {
	_, err := c.doRequest("DELETE", "/messages/"+messageID, nil)
	return err
}

// BurnMessage physically deletes an expired or deletable message.
func (c *Client) BurnMessage(messageID string) error {
	_, err := c.doRequest("POST", "/messages/"+messageID+"/burn", nil)
	return err
}

// GetUser returns a user's public profile.
func (c *Client) GetUser(userID string) (*Participant, error) {
	respBody, err := c.doRequest("GET", "/users/"+userID, nil)
	if err != nil {
		return nil, err
	}

	var resp Participant
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
