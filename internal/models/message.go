package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType enumerates the message payload kinds.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentAudio ContentType = "audio"
	ContentVideo ContentType = "video"
	ContentFile  ContentType = "file"
)

// ValidContentType reports whether ct is one of the known payload kinds.
func ValidContentType(ct ContentType) bool {
	switch ct {
	case ContentText, ContentImage, ContentAudio, ContentVideo, ContentFile:
		return true
	}
	return false
}

// Message is an ephemeral message. Content is ciphertext the client produced;
// the server stores the encryption key as an opaque string and returns it to
// session members, never interpreting either.
type Message struct {
	ID            string      `json:"id"` // ULID
	SessionID     uuid.UUID   `json:"session_id"`
	SenderID      uuid.UUID   `json:"sender_id"`
	Sender        Participant `json:"sender"`
	Content       *string     `json:"content,omitempty"`
	ContentType   ContentType `json:"content_type"`
	MediaURL      *string     `json:"media_url,omitempty"`
	EncryptionKey *string     `json:"encryption_key,omitempty"`
	ExpireAfter   *int64      `json:"expire_after,omitempty"` // seconds from creation
	ExpireOnRead  bool        `json:"expire_after_read"`
	IsRead        bool        `json:"is_read"`
	ReadAt        *time.Time  `json:"read_at,omitempty"`
	IsDeleted     bool        `json:"is_deleted"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ExpiredAt reports whether the message's absolute TTL has elapsed at now.
func (m *Message) ExpiredAt(now time.Time) bool {
	if m.ExpireAfter == nil {
		return false
	}
	return !now.Before(m.CreatedAt.Add(time.Duration(*m.ExpireAfter) * time.Second))
}

// ReadDeadline returns when a burn-on-read message becomes purgeable: readAt
// plus the message TTL, or the supplied grace window when no TTL was given.
// The zero time is returned for messages that are not read burn-on-read.
func (m *Message) ReadDeadline(grace time.Duration) time.Time {
	if !m.ExpireOnRead || !m.IsRead || m.ReadAt == nil {
		return time.Time{}
	}
	delay := grace
	if m.ExpireAfter != nil {
		delay = time.Duration(*m.ExpireAfter) * time.Second
	}
	return m.ReadAt.Add(delay)
}

// ReadReceipt records who read a burn-on-read message and the derived purge
// deadline. Observability only; the sweeper re-derives eligibility itself.
type ReadReceipt struct {
	MessageID    string    `json:"message_id"`
	UserID       uuid.UUID `json:"user_id"`
	WillDeleteAt time.Time `json:"will_delete_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// SweepResult aggregates one sweeper run.
type SweepResult struct {
	DeletedCount    int64 `json:"deleted_count"`
	MediaFilesCount int64 `json:"media_files_count"`
	Skipped         bool  `json:"skipped,omitempty"` // another sweep held the guard
}

// MaintenanceResult aggregates one maintenance pass.
type MaintenanceResult struct {
	EmptySessionsRemoved     int64 `json:"empty_sessions_removed"`
	OrphanMembershipsRemoved int64 `json:"orphan_memberships_removed"`
	RezeroedMessages         int64 `json:"rezeroed_messages"`
}
