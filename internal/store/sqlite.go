package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vanishlabs/vanish/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/vanish.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/vanish.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		avatar TEXT DEFAULT '',
		token_hash TEXT UNIQUE NOT NULL,
		is_admin INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS private_sessions (
		id TEXT PRIMARY KEY,
		pair_key TEXT NOT NULL UNIQUE,
		is_ephemeral INTEGER DEFAULT 0,
		last_message_preview TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS session_members (
		session_id TEXT NOT NULL REFERENCES private_sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (session_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS pinned_sessions (
		session_id TEXT NOT NULL REFERENCES private_sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES private_sessions(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		content TEXT,
		content_type TEXT NOT NULL DEFAULT 'text',
		media_url TEXT,
		encryption_key TEXT,
		expire_after INTEGER,
		expire_after_read INTEGER DEFAULT 0,
		is_read INTEGER DEFAULT 0,
		read_at DATETIME,
		is_deleted INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS message_reads (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		will_delete_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (message_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_members_user ON session_members(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_deleted ON messages(is_deleted);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, avatar, tokenHash string, isAdmin bool) (*models.User, error) {
	id := uuid.New()
	now := time.Now().UTC()

	adminInt := 0
	if isAdmin {
		adminInt = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, avatar, token_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), username, avatar, tokenHash, adminInt, now)
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var idStr string
	var adminInt int
	err := row.Scan(&idStr, &user.Username, &user.Avatar, &adminInt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	user.IsAdmin = adminInt == 1
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, avatar, is_admin, created_at
		FROM users WHERE id = ?
	`, id.String()))
}

// GetUserByTokenHash retrieves a user by API token hash.
func (s *SQLiteStore) GetUserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, avatar, is_admin, created_at
		FROM users WHERE token_hash = ?
	`, tokenHash))
}

// CreateSession creates a session and both membership rows as one atomic unit.
func (s *SQLiteStore) CreateSession(ctx context.Context, userA, userB uuid.UUID, ephemeral bool, now time.Time) (*models.ChatSession, bool, error) {
	id := uuid.New()

	ephemeralInt := 0
	if ephemeral {
		ephemeralInt = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO private_sessions (id, pair_key, is_ephemeral, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), sessionPairKey(userA, userB), ephemeralInt, now, now)
	if err != nil {
		// The unique pair_key rejects the insert when a concurrent create
		// for the same pair won; hand back the winner's session instead.
		tx.Rollback()
		if existing, findErr := s.FindSessionByMembers(ctx, userA, userB); findErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, err
	}

	for _, userID := range []uuid.UUID{userA, userB} {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_members (session_id, user_id) VALUES (?, ?)
		`, id.String(), userID.String())
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// FindSessionByMembers finds the session whose membership set is exactly {userA, userB}.
func (s *SQLiteStore) FindSessionByMembers(ctx context.Context, userA, userB uuid.UUID) (*models.ChatSession, error) {
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id FROM private_sessions c
		JOIN session_members m1 ON c.id = m1.session_id AND m1.user_id = ?
		JOIN session_members m2 ON c.id = m2.session_id AND m2.user_id = ?
		WHERE (SELECT COUNT(*) FROM session_members WHERE session_id = c.id) = 2
		LIMIT 1
	`, userA.String(), userB.String()).Scan(&idStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s.GetSession(ctx, uuid.MustParse(idStr))
}

// GetSession retrieves a session with its participants.
func (s *SQLiteStore) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	session := &models.ChatSession{}
	var idStr string
	var ephemeralInt int

	err := s.db.QueryRowContext(ctx, `
		SELECT id, is_ephemeral, last_message_preview, created_at, updated_at
		FROM private_sessions WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&ephemeralInt,
		&session.LastMessagePreview,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	session.ID = uuid.MustParse(idStr)
	session.IsEphemeral = ephemeralInt == 1

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar
		FROM session_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.session_id = ?
		ORDER BY u.username
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		var pidStr string
		if err := rows.Scan(&pidStr, &p.Username, &p.Avatar); err != nil {
			return nil, err
		}
		p.ID = uuid.MustParse(pidStr)
		session.Participants = append(session.Participants, p)
	}

	return session, rows.Err()
}

// IsMember reports whether the user belongs to the session.
func (s *SQLiteStore) IsMember(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM session_members WHERE session_id = ? AND user_id = ?
	`, sessionID.String(), userID.String()).Scan(&n)
	return n > 0, err
}

// ListSessionSummaries lists the user's sessions with unread counts and the
// peer's public profile, pinned-first then most recently updated.
func (s *SQLiteStore) ListSessionSummaries(ctx context.Context, userID uuid.UUID) ([]models.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.is_ephemeral, c.last_message_preview, c.updated_at,
			u.id, u.username, u.avatar,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.session_id = c.id AND m.is_deleted = 0 AND m.is_read = 0 AND m.sender_id != ?) AS unread_count,
			EXISTS(SELECT 1 FROM pinned_sessions p
			 WHERE p.session_id = c.id AND p.user_id = ?) AS is_pinned
		FROM private_sessions c
		JOIN session_members me ON me.session_id = c.id AND me.user_id = ?
		JOIN session_members peer ON peer.session_id = c.id AND peer.user_id != ?
		JOIN users u ON u.id = peer.user_id
		ORDER BY is_pinned DESC, c.updated_at DESC
	`, userID.String(), userID.String(), userID.String(), userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.SessionSummary
	for rows.Next() {
		var sum models.SessionSummary
		var idStr, peerIDStr string
		var ephemeralInt, pinnedInt int

		err := rows.Scan(
			&idStr,
			&ephemeralInt,
			&sum.LastMessagePreview,
			&sum.UpdatedAt,
			&peerIDStr,
			&sum.Peer.Username,
			&sum.Peer.Avatar,
			&sum.UnreadCount,
			&pinnedInt,
		)
		if err != nil {
			return nil, err
		}

		sum.ID = uuid.MustParse(idStr)
		sum.IsEphemeral = ephemeralInt == 1
		sum.IsPinned = pinnedInt == 1
		sum.Peer.ID = uuid.MustParse(peerIDStr)
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// PinSession pins a session for a user. Idempotent.
func (s *SQLiteStore) PinSession(ctx context.Context, sessionID, userID uuid.UUID, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO pinned_sessions (session_id, user_id, created_at)
		VALUES (?, ?, ?)
	`, sessionID.String(), userID.String(), now)
	return err
}

// UnpinSession removes a user's pin. Idempotent.
func (s *SQLiteStore) UnpinSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pinned_sessions WHERE session_id = ? AND user_id = ?
	`, sessionID.String(), userID.String())
	return err
}

// AppendMessage inserts a message and refreshes the session preview and
// timestamp in one transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message, preview string) error {
	expireOnReadInt := 0
	if msg.ExpireOnRead {
		expireOnReadInt = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (
			id, session_id, sender_id, content, content_type, media_url,
			encryption_key, expire_after, expire_after_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID.String(), msg.SenderID.String(), msg.Content, string(msg.ContentType),
		msg.MediaURL, msg.EncryptionKey, msg.ExpireAfter, expireOnReadInt, msg.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE private_sessions SET last_message_preview = ?, updated_at = ? WHERE id = ?
	`, preview, msg.CreatedAt, msg.SessionID.String())
	if err != nil {
		return err
	}

	return tx.Commit()
}

const messageColumns = `
	m.id, m.session_id, m.sender_id, m.content, m.content_type, m.media_url,
	m.encryption_key, m.expire_after, m.expire_after_read, m.is_read, m.read_at,
	m.is_deleted, m.created_at, u.username, u.avatar`

func scanSQLiteMessage(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var sessionIDStr, senderIDStr, contentType string
	var expireOnReadInt, readInt, deletedInt int

	err := scan(
		&msg.ID,
		&sessionIDStr,
		&senderIDStr,
		&msg.Content,
		&contentType,
		&msg.MediaURL,
		&msg.EncryptionKey,
		&msg.ExpireAfter,
		&expireOnReadInt,
		&readInt,
		&msg.ReadAt,
		&deletedInt,
		&msg.CreatedAt,
		&msg.Sender.Username,
		&msg.Sender.Avatar,
	)
	if err != nil {
		return nil, err
	}

	msg.SessionID = uuid.MustParse(sessionIDStr)
	msg.SenderID = uuid.MustParse(senderIDStr)
	msg.Sender.ID = msg.SenderID
	msg.ContentType = models.ContentType(contentType)
	msg.ExpireOnRead = expireOnReadInt == 1
	msg.IsRead = readInt == 1
	msg.IsDeleted = deletedInt == 1
	return msg, nil
}

// GetMessage retrieves a message by ID with its sender profile.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?
	`, id)
	msg, err := scanSQLiteMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves non-tombstoned messages for a session, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.session_id = ? AND m.is_deleted = 0
		ORDER BY m.created_at DESC
		LIMIT ? OFFSET ?
	`, sessionID.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}

// MarkMessageRead sets the read flags and, for burn-on-read messages, records
// the read receipt with its purge deadline, in one transaction. A second call
// for the same reader changes nothing.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id string, readerID uuid.UUID, readAt time.Time, willDeleteAt *time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, read_at = ?
		WHERE id = ? AND is_read = 0
	`, readAt, id)
	if err != nil {
		return err
	}

	if willDeleteAt != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO message_reads (message_id, user_id, will_delete_at, created_at)
			VALUES (?, ?, ?, ?)
		`, id, readerID.String(), *willDeleteAt, readAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// TombstoneMessage marks a message deleted and nulls content, encryption key
// and media ref in the same statement, returning the prior media ref so the
// caller can unlink the blob. This is the only writer of is_deleted.
func (s *SQLiteStore) TombstoneMessage(ctx context.Context, id string) (*string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var mediaURL *string
	err = tx.QueryRowContext(ctx, `SELECT media_url FROM messages WHERE id = ?`, id).Scan(&mediaURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE messages
		SET is_deleted = 1, content = NULL, encryption_key = NULL, media_url = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return mediaURL, nil
}

// PurgeMessage physically deletes a message row. The payload fields are
// re-nulled first as a defensive double-check. Returns whether a row existed.
func (s *SQLiteStore) PurgeMessage(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE messages
		SET is_deleted = 1, content = NULL, encryption_key = NULL, media_url = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetReadReceipt retrieves the read receipt for a message, if any.
func (s *SQLiteStore) GetReadReceipt(ctx context.Context, messageID string) (*models.ReadReceipt, error) {
	receipt := &models.ReadReceipt{}
	var userIDStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, user_id, will_delete_at, created_at
		FROM message_reads WHERE message_id = ?
	`, messageID).Scan(
		&receipt.MessageID,
		&userIDStr,
		&receipt.WillDeleteAt,
		&receipt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	receipt.UserID = uuid.MustParse(userIDStr)
	return receipt, nil
}

// SelectPurgeable returns every message satisfying any expiry condition:
// read past its grace window, past its absolute TTL, or already tombstoned.
func (s *SQLiteStore) SelectPurgeable(ctx context.Context, now time.Time, grace time.Duration) ([]PurgeCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, media_url FROM messages
		WHERE is_deleted = 1
		   OR (expire_after IS NOT NULL AND strftime('%s', created_at) + expire_after <= ?)
		   OR (expire_after_read = 1 AND is_read = 1 AND read_at IS NOT NULL
		       AND strftime('%s', read_at) + COALESCE(expire_after, ?) <= ?)
	`, now.Unix(), int64(grace.Seconds()), now.Unix())
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

// PurgeBatch physically deletes a batch of messages in one transaction,
// re-nulling payload fields first. Returns the number of rows deleted.
func (s *SQLiteStore) PurgeBatch(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE messages
		SET is_deleted = 1, content = NULL, encryption_key = NULL, media_url = NULL
		WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return affected, tx.Commit()
}

// DeleteEmptySessions removes sessions that never held a message and are older
// than the retention cutoff. Memberships and pins cascade.
func (s *SQLiteStore) DeleteEmptySessions(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM private_sessions
		WHERE NOT EXISTS (SELECT 1 FROM messages m WHERE m.session_id = private_sessions.id)
		  AND strftime('%s', created_at) < ?
	`, olderThan.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOrphanMemberships removes membership rows whose session is gone.
// Foreign-key cascade should make this a no-op; it is re-checked anyway.
func (s *SQLiteStore) DeleteOrphanMemberships(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM session_members
		WHERE NOT EXISTS (SELECT 1 FROM private_sessions c WHERE c.id = session_members.session_id)
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RezeroTombstones re-nulls payload fields on any tombstone still holding
// content, key or media ref. Backstop for the secure-purge invariant.
func (s *SQLiteStore) RezeroTombstones(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET content = NULL, encryption_key = NULL, media_url = NULL
		WHERE is_deleted = 1
		  AND (content IS NOT NULL OR encryption_key IS NOT NULL OR media_url IS NOT NULL)
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
