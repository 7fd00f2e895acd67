package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession is a two-party conversation container. The membership set is
// fixed at creation and always holds exactly two distinct users.
type ChatSession struct {
	ID                 uuid.UUID     `json:"id"`
	IsEphemeral        bool          `json:"is_ephemeral"`
	LastMessagePreview string        `json:"last_message_preview,omitempty"`
	Participants       []Participant `json:"participants,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// SessionSummary is one row of a user's session list: the session annotated
// with the other member's profile, unread count and pin state.
type SessionSummary struct {
	ID                 uuid.UUID   `json:"id"`
	IsEphemeral        bool        `json:"is_ephemeral"`
	LastMessagePreview string      `json:"last_message_preview,omitempty"`
	Peer               Participant `json:"peer"`
	UnreadCount        int64       `json:"unread_count"`
	IsPinned           bool        `json:"is_pinned"`
	UpdatedAt          time.Time   `json:"updated_at"`
}
