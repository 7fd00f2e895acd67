package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vanishlabs/vanish/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// RunMigrations applies the schema to the target database.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		token_hash TEXT UNIQUE NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS private_sessions (
		id UUID PRIMARY KEY,
		pair_key TEXT NOT NULL UNIQUE,
		is_ephemeral BOOLEAN NOT NULL DEFAULT FALSE,
		last_message_preview TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS session_members (
		session_id UUID NOT NULL REFERENCES private_sessions(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (session_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS pinned_sessions (
		session_id UUID NOT NULL REFERENCES private_sessions(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES private_sessions(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL,
		content TEXT,
		content_type TEXT NOT NULL DEFAULT 'text',
		media_url TEXT,
		encryption_key TEXT,
		expire_after BIGINT,
		expire_after_read BOOLEAN NOT NULL DEFAULT FALSE,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		read_at TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS message_reads (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		will_delete_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (message_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_members_user ON session_members(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_deleted ON messages(is_deleted);
	`

	_, err = conn.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, username, avatar, tokenHash string, isAdmin bool) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, avatar, token_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, avatar, is_admin, created_at
	`, uuid.New(), username, avatar, tokenHash, isAdmin).Scan(
		&user.ID,
		&user.Username,
		&user.Avatar,
		&user.IsAdmin,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, avatar, is_admin, created_at
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Avatar, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByTokenHash retrieves a user by API token hash.
func (s *PostgresStore) GetUserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, avatar, is_admin, created_at
		FROM users WHERE token_hash = $1
	`, tokenHash).Scan(&user.ID, &user.Username, &user.Avatar, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateSession creates a session and both membership rows as one atomic unit.
func (s *PostgresStore) CreateSession(ctx context.Context, userA, userB uuid.UUID, ephemeral bool, now time.Time) (*models.ChatSession, bool, error) {
	id := uuid.New()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO private_sessions (id, pair_key, is_ephemeral, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, id, sessionPairKey(userA, userB), ephemeral, now)
	if err != nil {
		// The unique pair_key rejects the insert when a concurrent create
		// for the same pair won; hand back the winner's session instead.
		tx.Rollback(ctx)
		if existing, findErr := s.FindSessionByMembers(ctx, userA, userB); findErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, err
	}

	for _, userID := range []uuid.UUID{userA, userB} {
		_, err = tx.Exec(ctx, `
			INSERT INTO session_members (session_id, user_id) VALUES ($1, $2)
		`, id, userID)
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// FindSessionByMembers finds the session whose membership set is exactly {userA, userB}.
func (s *PostgresStore) FindSessionByMembers(ctx context.Context, userA, userB uuid.UUID) (*models.ChatSession, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT c.id FROM private_sessions c
		JOIN session_members m1 ON c.id = m1.session_id AND m1.user_id = $1
		JOIN session_members m2 ON c.id = m2.session_id AND m2.user_id = $2
		WHERE (SELECT COUNT(*) FROM session_members WHERE session_id = c.id) = 2
		LIMIT 1
	`, userA, userB).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s.GetSession(ctx, id)
}

// GetSession retrieves a session with its participants.
func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	session := &models.ChatSession{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, is_ephemeral, last_message_preview, created_at, updated_at
		FROM private_sessions WHERE id = $1
	`, id).Scan(
		&session.ID,
		&session.IsEphemeral,
		&session.LastMessagePreview,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.username, u.avatar
		FROM session_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.session_id = $1
		ORDER BY u.username
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Username, &p.Avatar); err != nil {
			return nil, err
		}
		session.Participants = append(session.Participants, p)
	}

	return session, rows.Err()
}

// IsMember reports whether the user belongs to the session.
func (s *PostgresStore) IsMember(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM session_members WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID).Scan(&n)
	return n > 0, err
}

// ListSessionSummaries lists the user's sessions with unread counts and the
// peer's public profile, pinned-first then most recently updated.
func (s *PostgresStore) ListSessionSummaries(ctx context.Context, userID uuid.UUID) ([]models.SessionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.is_ephemeral, c.last_message_preview, c.updated_at,
			u.id, u.username, u.avatar,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.session_id = c.id AND NOT m.is_deleted AND NOT m.is_read AND m.sender_id != $1) AS unread_count,
			EXISTS(SELECT 1 FROM pinned_sessions p
			 WHERE p.session_id = c.id AND p.user_id = $1) AS is_pinned
		FROM private_sessions c
		JOIN session_members me ON me.session_id = c.id AND me.user_id = $1
		JOIN session_members peer ON peer.session_id = c.id AND peer.user_id != $1
		JOIN users u ON u.id = peer.user_id
		ORDER BY is_pinned DESC, c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.SessionSummary
	for rows.Next() {
		var sum models.SessionSummary
		err := rows.Scan(
			&sum.ID,
			&sum.IsEphemeral,
			&sum.LastMessagePreview,
			&sum.UpdatedAt,
			&sum.Peer.ID,
			&sum.Peer.Username,
			&sum.Peer.Avatar,
			&sum.UnreadCount,
			&sum.IsPinned,
		)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// PinSession pins a session for a user. Idempotent.
func (s *PostgresStore) PinSession(ctx context.Context, sessionID, userID uuid.UUID, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pinned_sessions (session_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, sessionID, userID, now)
	return err
}

// UnpinSession removes a user's pin. Idempotent.
func (s *PostgresStore) UnpinSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM pinned_sessions WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID)
	return err
}

// AppendMessage inserts a message and refreshes the session preview and
// timestamp in one transaction.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message, preview string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (
			id, session_id, sender_id, content, content_type, media_url,
			encryption_key, expire_after, expire_after_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, msg.ID, msg.SessionID, msg.SenderID, msg.Content, string(msg.ContentType),
		msg.MediaURL, msg.EncryptionKey, msg.ExpireAfter, msg.ExpireOnRead, msg.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE private_sessions SET last_message_preview = $1, updated_at = $2 WHERE id = $3
	`, preview, msg.CreatedAt, msg.SessionID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const pgMessageColumns = `
	m.id, m.session_id, m.sender_id, m.content, m.content_type, m.media_url,
	m.encryption_key, m.expire_after, m.expire_after_read, m.is_read, m.read_at,
	m.is_deleted, m.created_at, u.username, u.avatar`

func scanPgMessage(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var contentType string

	err := scan(
		&msg.ID,
		&msg.SessionID,
		&msg.SenderID,
		&msg.Content,
		&contentType,
		&msg.MediaURL,
		&msg.EncryptionKey,
		&msg.ExpireAfter,
		&msg.ExpireOnRead,
		&msg.IsRead,
		&msg.ReadAt,
		&msg.IsDeleted,
		&msg.CreatedAt,
		&msg.Sender.Username,
		&msg.Sender.Avatar,
	)
	if err != nil {
		return nil, err
	}

	msg.Sender.ID = msg.SenderID
	msg.ContentType = models.ContentType(contentType)
	return msg, nil
}

// GetMessage retrieves a message by ID with its sender profile.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1
	`, id)
	msg, err := scanPgMessage(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves non-tombstoned messages for a session, newest first.
func (s *PostgresStore) ListMessages(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.session_id = $1 AND NOT m.is_deleted
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3
	`, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanPgMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}

// MarkMessageRead sets the read flags and, for burn-on-read messages, records
// the read receipt with its purge deadline, in one transaction.
func (s *PostgresStore) MarkMessageRead(ctx context.Context, id string, readerID uuid.UUID, readAt time.Time, willDeleteAt *time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = $1
		WHERE id = $2 AND NOT is_read
	`, readAt, id)
	if err != nil {
		return err
	}

	if willDeleteAt != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO message_reads (message_id, user_id, will_delete_at, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING
		`, id, readerID, *willDeleteAt, readAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// TombstoneMessage marks a message deleted and nulls content, encryption key
// and media ref in the same statement, returning the prior media ref.
func (s *PostgresStore) TombstoneMessage(ctx context.Context, id string) (*string, error) {
	var mediaURL *string
	err := s.pool.QueryRow(ctx, `
		UPDATE messages m
		SET is_deleted = TRUE, content = NULL, encryption_key = NULL, media_url = NULL
		FROM (SELECT id, media_url FROM messages WHERE id = $1) prior
		WHERE m.id = prior.id
		RETURNING prior.media_url
	`, id).Scan(&mediaURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return mediaURL, nil
}

// PurgeMessage physically deletes a message row, re-nulling payload fields
// first as a defensive double-check. Returns whether a row existed.
func (s *PostgresStore) PurgeMessage(ctx context.Context, id string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE messages
		SET is_deleted = TRUE, content = NULL, encryption_key = NULL, media_url = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetReadReceipt retrieves the read receipt for a message, if any.
func (s *PostgresStore) GetReadReceipt(ctx context.Context, messageID string) (*models.ReadReceipt, error) {
	receipt := &models.ReadReceipt{}
	err := s.pool.QueryRow(ctx, `
		SELECT message_id, user_id, will_delete_at, created_at
		FROM message_reads WHERE message_id = $1
	`, messageID).Scan(
		&receipt.MessageID,
		&receipt.UserID,
		&receipt.WillDeleteAt,
		&receipt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return receipt, nil
}

// SelectPurgeable returns every message satisfying any expiry condition.
func (s *PostgresStore) SelectPurgeable(ctx context.Context, now time.Time, grace time.Duration) ([]PurgeCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, media_url FROM messages
		WHERE is_deleted
		   OR (expire_after IS NOT NULL AND created_at + make_interval(secs => expire_after) <= $1)
		   OR (expire_after_read AND is_read AND read_at IS NOT NULL
		       AND read_at + make_interval(secs => COALESCE(expire_after, $2)) <= $1)
	`, now, int64(grace.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []PurgeCandidate
	for rows.Next() {
		var c PurgeCandidate
		if err := rows.Scan(&c.ID, &c.MediaURL); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// PurgeBatch physically deletes a batch of messages in one transaction.
func (s *PostgresStore) PurgeBatch(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE messages
		SET is_deleted = TRUE, content = NULL, encryption_key = NULL, media_url = NULL
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), tx.Commit(ctx)
}

// DeleteEmptySessions removes sessions that never held a message and are older
// than the retention cutoff.
func (s *PostgresStore) DeleteEmptySessions(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM private_sessions c
		WHERE NOT EXISTS (SELECT 1 FROM messages m WHERE m.session_id = c.id)
		  AND c.created_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteOrphanMemberships removes membership rows whose session is gone.
func (s *PostgresStore) DeleteOrphanMemberships(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM session_members m
		WHERE NOT EXISTS (SELECT 1 FROM private_sessions c WHERE c.id = m.session_id)
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RezeroTombstones re-nulls payload fields on any tombstone still holding
// content, key or media ref.
func (s *PostgresStore) RezeroTombstones(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET content = NULL, encryption_key = NULL, media_url = NULL
		WHERE is_deleted
		  AND (content IS NOT NULL OR encryption_key IS NOT NULL OR media_url IS NOT NULL)
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
