package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vanishlabs/vanish/internal/models"
)

// PurgeCandidate is a message the sweeper may physically delete, together
// with the media ref that must be unlinked after the row is gone.
type PurgeCandidate struct {
	ID       string
	MediaURL *string
}

// sessionPairKey normalizes the unordered member pair into the key the unique
// constraint on private_sessions is declared over.
func sessionPairKey(a, b uuid.UUID) string {
	s1, s2 := a.String(), b.String()
	if s2 < s1 {
		s1, s2 = s2, s1
	}
	return s1 + ":" + s2
}

// DataStore defines the interface for persistent storage of users, sessions
// and ephemeral messages. Both PostgresStore and SQLiteStore implement it.
//
// Queries that evaluate expiry take the caller's notion of "now" (and the
// burn-on-read grace window) as parameters, so the engine's injected clock
// reaches the SQL unchanged.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, username, avatar, tokenHash string, isAdmin bool) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error)

	// Session operations. CreateSession is race-safe on the unordered member
	// pair: when a concurrent create wins, the existing session is returned
	// with created == false.
	CreateSession(ctx context.Context, userA, userB uuid.UUID, ephemeral bool, now time.Time) (session *models.ChatSession, created bool, err error)
	FindSessionByMembers(ctx context.Context, userA, userB uuid.UUID) (*models.ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	IsMember(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
	ListSessionSummaries(ctx context.Context, userID uuid.UUID) ([]models.SessionSummary, error)
	PinSession(ctx context.Context, sessionID, userID uuid.UUID, now time.Time) error
	UnpinSession(ctx context.Context, sessionID, userID uuid.UUID) error

	// Message operations
	AppendMessage(ctx context.Context, msg *models.Message, preview string) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]models.Message, error)
	MarkMessageRead(ctx context.Context, id string, readerID uuid.UUID, readAt time.Time, willDeleteAt *time.Time) error
	TombstoneMessage(ctx context.Context, id string) (mediaURL *string, err error)
	PurgeMessage(ctx context.Context, id string) (bool, error)
	GetReadReceipt(ctx context.Context, messageID string) (*models.ReadReceipt, error)

	// Sweep and maintenance operations
	SelectPurgeable(ctx context.Context, now time.Time, grace time.Duration) ([]PurgeCandidate, error)
	PurgeBatch(ctx context.Context, ids []string) (int64, error)
	DeleteEmptySessions(ctx context.Context, olderThan time.Time) (int64, error)
	DeleteOrphanMemberships(ctx context.Context) (int64, error)
	RezeroTombstones(ctx context.Context) (int64, error)
}
