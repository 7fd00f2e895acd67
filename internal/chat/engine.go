// Package chat implements the ephemeral private-messaging engine: two-party
// sessions, message lifecycle (send, read, soft-delete, burn), and the
// background sweep and maintenance passes that guarantee expired messages are
// physically and irrecoverably purged.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/vanishlabs/vanish/internal/media"
	"github.com/vanishlabs/vanish/internal/metrics"
	"github.com/vanishlabs/vanish/internal/models"
	"github.com/vanishlabs/vanish/internal/store"
	apperrors "github.com/vanishlabs/vanish/pkg/errors"
)

// previewText is the denormalized session preview for ephemeral messages.
// Actual content is ciphertext, so the preview never reflects it.
const previewText = "[ephemeral message]"

// purgeBatchSize bounds each sweep deletion transaction.
const purgeBatchSize = 100

// SweepGuard is the optional sweep-in-progress lock. Overlapping sweeps are
// safe (deletes are idempotent); the guard only avoids duplicate work.
type SweepGuard interface {
	AcquireSweepLock(ctx context.Context, ttl time.Duration) bool
	ReleaseSweepLock(ctx context.Context)
}

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	// ReadBurnGrace is how long a read burn-on-read message without an
	// explicit TTL survives before becoming purgeable.
	ReadBurnGrace time.Duration
	// SessionRetention is how long an empty session survives before the
	// maintenance pass removes it.
	SessionRetention time.Duration
	// Guard, when set, serializes sweeper runs.
	Guard SweepGuard
	// Now overrides the clock. Tests use this to step time.
	Now func() time.Time
}

// Engine is the message lifecycle engine. It is stateless between requests:
// expiry is evaluated lazily from persisted state, never from per-message
// timers.
type Engine struct {
	db        store.DataStore
	blobs     media.BlobStore
	guard     SweepGuard
	logger    zerolog.Logger
	grace     time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewEngine creates an Engine over the given store and blob store.
func NewEngine(db store.DataStore, blobs media.BlobStore, logger zerolog.Logger, opts Options) *Engine {
	if opts.ReadBurnGrace <= 0 {
		opts.ReadBurnGrace = 5 * time.Minute
	}
	if opts.SessionRetention <= 0 {
		opts.SessionRetention = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if blobs == nil {
		blobs = media.Discard{}
	}
	return &Engine{
		db:        db,
		blobs:     blobs,
		guard:     opts.Guard,
		logger:    logger,
		grace:     opts.ReadBurnGrace,
		retention: opts.SessionRetention,
		now:       opts.Now,
	}
}

// FindOrCreateSession returns the session for the unordered pair
// {currentUser, targetUser}, creating it if absent. Idempotent: at most one
// session exists per pair.
func (e *Engine) FindOrCreateSession(ctx context.Context, currentUser, targetUser uuid.UUID, ephemeral bool) (uuid.UUID, bool, error) {
	if currentUser == targetUser {
		return uuid.Nil, false, apperrors.Conflict("cannot start a chat with yourself")
	}

	target, err := e.db.GetUserByID(ctx, targetUser)
	if err != nil {
		return uuid.Nil, false, apperrors.Internal("database error", err)
	}
	if target == nil {
		return uuid.Nil, false, apperrors.NotFound("user not found")
	}

	existing, err := e.db.FindSessionByMembers(ctx, currentUser, targetUser)
	if err != nil {
		return uuid.Nil, false, apperrors.Internal("database error", err)
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	session, created, err := e.db.CreateSession(ctx, currentUser, targetUser, ephemeral, e.now())
	if err != nil {
		return uuid.Nil, false, apperrors.Internal("failed to create session", err)
	}
	if !created {
		// Lost the create race; the session already exists.
		return session.ID, false, nil
	}

	metrics.SessionsCreated.Inc()
	e.logger.Info().
		Str("session_id", session.ID.String()).
		Bool("ephemeral", ephemeral).
		Msg("session created")

	return session.ID, true, nil
}

// ListSessions returns the user's session list, pinned-first then by recency,
// each annotated with unread count and the peer's public profile.
func (e *Engine) ListSessions(ctx context.Context, user uuid.UUID) ([]models.SessionSummary, error) {
	summaries, err := e.db.ListSessionSummaries(ctx, user)
	if err != nil {
		return nil, apperrors.Internal("database error", err)
	}
	return summaries, nil
}

// GetSession returns full session detail, members only.
func (e *Engine) GetSession(ctx context.Context, sessionID, user uuid.UUID) (*models.ChatSession, error) {
	session, err := e.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Internal("database error", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("session not found")
	}

	member, err := e.db.IsMember(ctx, sessionID, user)
	if err != nil {
		return nil, apperrors.Internal("database error", err)
	}
	if !member {
		return nil, apperrors.Forbidden("not a member of this session")
	}

	return session, nil
}

// PinSession pins the session in the user's list. Idempotent, member-only.
func (e *Engine) PinSession(ctx context.Context, sessionID, user uuid.UUID) error {
	if err := e.requireMember(ctx, sessionID, user); err != nil {
		return err
	}
	if err := e.db.PinSession(ctx, sessionID, user, e.now()); err != nil {
		return apperrors.Internal("database error", err)
	}
	return nil
}

// UnpinSession removes the user's pin. Idempotent, member-only.
func (e *Engine) UnpinSession(ctx context.Context, sessionID, user uuid.UUID) error {
	if err := e.requireMember(ctx, sessionID, user); err != nil {
		return err
	}
	if err := e.db.UnpinSession(ctx, sessionID, user); err != nil {
		return apperrors.Internal("database error", err)
	}
	return nil
}

func (e *Engine) requireMember(ctx context.Context, sessionID, user uuid.UUID) error {
	session, err := e.db.GetSession(ctx, sessionID)
	if err != nil {
		return apperrors.Internal("database error", err)
	}
	if session == nil {
		return apperrors.NotFound("session not found")
	}
	member, err := e.db.IsMember(ctx, sessionID, user)
	if err != nil {
		return apperrors.Internal("database error", err)
	}
	if !member {
		return apperrors.Forbidden("not a member of this session")
	}
	return nil
}

// SendInput carries the client-supplied attributes of a new message.
type SendInput struct {
	Content       string
	ContentType   models.ContentType
	MediaURL      string
	EncryptionKey string
	ExpireAfter   *int64 // seconds from creation
	ExpireOnRead  bool
}

// Send appends a message to a session. The encryption key is required and
// stored opaquely; no expiry timer is armed here. Eligibility is evaluated
// lazily by readers and by the sweeper.
func (e *Engine) Send(ctx context.Context, sessionID, sender uuid.UUID, in SendInput) (*models.Message, error) {
	if in.ContentType == "" {
		in.ContentType = models.ContentText
	}
	if !models.ValidContentType(in.ContentType) {
		return nil, apperrors.Validation("unknown content type")
	}
	if in.EncryptionKey == "" {
		return nil, apperrors.Validation("encryption key is required")
	}
	if in.Content == "" && in.ContentType == models.ContentText {
		return nil, apperrors.Validation("message content is required")
	}
	if in.ExpireAfter != nil && *in.ExpireAfter <= 0 {
		return nil, apperrors.Validation("expiry must be a positive number of seconds")
	}

	if err := e.requireMember(ctx, sessionID, sender); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:            ulid.Make().String(),
		SessionID:     sessionID,
		SenderID:      sender,
		ContentType:   in.ContentType,
		EncryptionKey: &in.EncryptionKey,
		ExpireAfter:   in.ExpireAfter,
		ExpireOnRead:  in.ExpireOnRead,
		CreatedAt:     e.now(),
	}
	if in.Content != "" {
		msg.Content = &in.Content
	}
	if in.MediaURL != "" {
		msg.MediaURL = &in.MediaURL
	}

	if err := e.db.AppendMessage(ctx, msg, previewText); err != nil {
		return nil, apperrors.Internal("failed to store message", err)
	}

	metrics.MessagesSent.WithLabelValues(string(in.ContentType)).Inc()
	e.logger.Debug().
		Str("message_id", msg.ID).
		Str("session_id", sessionID.String()).
		Bool("expire_after_read", in.ExpireOnRead).
		Msg("message sent")

	return msg, nil
}

// ListMessages returns a page of the session's messages, newest first,
// members only. Messages found past their absolute TTL are tombstoned on the
// way out and withheld from the response.
func (e *Engine) ListMessages(ctx context.Context, sessionID, user uuid.UUID, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	member, err := e.db.IsMember(ctx, sessionID, user)
	if err != nil {
		return nil, apperrors.Internal("database error", err)
	}
	if !member {
		return nil, apperrors.Forbidden("not a member of this session")
	}

	rows, err := e.db.ListMessages(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("database error", err)
	}

	now := e.now()
	messages := make([]models.Message, 0, len(rows))
	for _, msg := range rows {
		if msg.ExpiredAt(now) {
			e.tombstone(ctx, msg.ID, "lazy_expiry")
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// tombstone marks a message deleted via the store's single nulling statement
// and unlinks its blob best-effort.
func (e *Engine) tombstone(ctx context.Context, id, reason string) {
	mediaURL, err := e.db.TombstoneMessage(ctx, id)
	if err != nil {
		e.logger.Error().Err(err).Str("message_id", id).Msg("tombstone failed")
		return
	}
	metrics.MessagesPurged.WithLabelValues(reason).Inc()
	e.removeBlob(mediaURL)
}

// removeBlob deletes a media blob. Failures are logged, never propagated:
// a dangling blob is reclaimable later, a dangling DB row is not.
func (e *Engine) removeBlob(mediaURL *string) {
	if mediaURL == nil || *mediaURL == "" {
		return
	}
	if err := e.blobs.Remove(*mediaURL); err != nil {
		metrics.MediaDeleteFailures.Inc()
		e.logger.Warn().Err(err).Str("media_url", *mediaURL).Msg("media blob delete failed")
	}
}

// MarkRead marks a message read on behalf of reader. Idempotent; reading your
// own message is a no-op. For burn-on-read messages the first read records a
// receipt carrying the purge deadline, inside the same transaction as the
// flag update.
func (e *Engine) MarkRead(ctx context.Context, messageID string, reader uuid.UUID) error {
	msg, err := e.db.GetMessage(ctx, messageID)
	if err != nil {
		return apperrors.Internal("database error", err)
	}
	if msg == nil || msg.IsDeleted {
		return apperrors.NotFound("message not found")
	}

	member, err := e.db.IsMember(ctx, msg.SessionID, reader)
	if err != nil {
		return apperrors.Internal("database error", err)
	}
	if !member {
		return apperrors.Forbidden("not a member of this session")
	}

	if reader == msg.SenderID || msg.IsRead {
		return nil
	}

	readAt := e.now()
	var willDeleteAt *time.Time
	if msg.ExpireOnRead {
		delay := e.grace
		if msg.ExpireAfter != nil {
			delay = time.Duration(*msg.ExpireAfter) * time.Second
		}
		t := readAt.Add(delay)
		willDeleteAt = &t
	}

	if err := e.db.MarkMessageRead(ctx, messageID, reader, readAt, willDeleteAt); err != nil {
		return apperrors.Internal("failed to mark message read", err)
	}
	return nil
}

// SoftDelete tombstones a message. Only the original sender may call this;
// payload fields are nulled by the store's tombstone statement so the
// secure-purge invariant holds immediately.
func (e *Engine) SoftDelete(ctx context.Context, messageID string, requester uuid.UUID) error {
	msg, err := e.db.GetMessage(ctx, messageID)
	if err != nil {
		return apperrors.Internal("database error", err)
	}
	if msg == nil || msg.SenderID != requester {
		return apperrors.Forbidden("cannot delete this message")
	}
	if msg.IsDeleted {
		return nil
	}

	e.tombstone(ctx, messageID, "soft_delete")
	return nil
}

// Burn physically deletes a message once any expiry condition holds: the
// requester is the sender, the message is already tombstoned, its absolute
// TTL has elapsed, or it was read past its burn-on-read grace window.
// Requesters outside the session are told the message does not exist.
func (e *Engine) Burn(ctx context.Context, messageID string, requester uuid.UUID) error {
	msg, err := e.db.GetMessage(ctx, messageID)
	if err != nil {
		return apperrors.Internal("database error", err)
	}
	if msg == nil {
		return apperrors.NotFound("message not found")
	}

	if msg.SenderID != requester {
		member, err := e.db.IsMember(ctx, msg.SessionID, requester)
		if err != nil {
			return apperrors.Internal("database error", err)
		}
		if !member {
			return apperrors.NotFound("message not found")
		}
	}

	now := e.now()
	eligible := msg.SenderID == requester || msg.IsDeleted || msg.ExpiredAt(now)
	if !eligible {
		if deadline := msg.ReadDeadline(e.grace); !deadline.IsZero() && !now.Before(deadline) {
			eligible = true
		}
	}
	if !eligible {
		return apperrors.NotEligible("message does not satisfy any expiry condition")
	}

	mediaURL := msg.MediaURL
	existed, err := e.db.PurgeMessage(ctx, messageID)
	if err != nil {
		return apperrors.Internal("failed to delete message", err)
	}
	if !existed {
		// Raced with the sweeper; the message is gone either way.
		return nil
	}

	metrics.MessagesPurged.WithLabelValues("burn").Inc()
	e.removeBlob(mediaURL)

	e.logger.Info().
		Str("message_id", messageID).
		Str("requester", requester.String()).
		Msg("message burned")

	return nil
}

// GetReadReceipt returns the receipt recorded for a burn-on-read message, or
// nil when none exists. Members only.
func (e *Engine) GetReadReceipt(ctx context.Context, messageID string, user uuid.UUID) (*models.ReadReceipt, error) {
	msg, err := e.db.GetMessage(ctx, messageID)
	if err != nil {
		return nil, apperrors.Internal("database error", err)
	}
	if msg == nil {
		return nil, apperrors.NotFound("message not found")
	}
	if err := e.requireMember(ctx, msg.SessionID, user); err != nil {
		return nil, err
	}

	receipt, err := e.db.GetReadReceipt(ctx, messageID)
	if err != nil {
		return nil, apperrors.Internal("database error", err)
	}
	return receipt, nil
}
