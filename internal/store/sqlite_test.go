package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanishlabs/vanish/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func seedPair(t *testing.T, s *SQLiteStore) (alice, bob *models.User, session *models.ChatSession) {
	t.Helper()
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, "alice", "", "hash-a", false)
	require.NoError(t, err)
	bob, err = s.CreateUser(ctx, "bob", "", "hash-b", false)
	require.NoError(t, err)

	session, created, err := s.CreateSession(ctx, alice.ID, bob.ID, true, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, created)
	return alice, bob, session
}

func seedMessage(t *testing.T, s *SQLiteStore, session uuid.UUID, sender uuid.UUID, mutate func(*models.Message)) *models.Message {
	t.Helper()
	content := "ciphertext"
	key := "key-material"
	msg := &models.Message{
		ID:            ulid.Make().String(),
		SessionID:     session,
		SenderID:      sender,
		Content:       &content,
		ContentType:   models.ContentText,
		EncryptionKey: &key,
		CreatedAt:     time.Now().UTC(),
	}
	if mutate != nil {
		mutate(msg)
	}
	require.NoError(t, s.AppendMessage(context.Background(), msg, "[ephemeral message]"))
	return msg
}

func TestCreateUser_TokenLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "alice", "a.png", "token-hash-1", true)
	require.NoError(t, err)
	assert.True(t, created.IsAdmin)
	assert.Equal(t, "alice", created.Username)

	found, err := s.GetUserByTokenHash(ctx, "token-hash-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing, err := s.GetUserByTokenHash(ctx, "no-such-hash")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindSessionByMembers_ExactPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, bob, session := seedPair(t, s)

	found, err := s.FindSessionByMembers(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, session.ID, found.ID)

	// Symmetric.
	found, err = s.FindSessionByMembers(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, session.ID, found.ID)

	carol, err := s.CreateUser(ctx, "carol", "", "hash-c", false)
	require.NoError(t, err)
	none, err := s.FindSessionByMembers(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCreateSession_PairUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, bob, session := seedPair(t, s)

	// A second create for the same pair hits the pair_key constraint and
	// yields the existing session, even with the members swapped.
	dup, created, err := s.CreateSession(ctx, bob.ID, alice.ID, true, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, dup)
	assert.Equal(t, session.ID, dup.ID)

	summaries, err := s.ListSessionSummaries(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestTombstoneMessage_NullsPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, _, session := seedPair(t, s)

	url := "media/pic.jpg"
	msg := seedMessage(t, s, session.ID, alice.ID, func(m *models.Message) {
		m.ContentType = models.ContentImage
		m.MediaURL = &url
	})

	prior, err := s.TombstoneMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, url, *prior)

	stored, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsDeleted)
	assert.Nil(t, stored.Content)
	assert.Nil(t, stored.EncryptionKey)
	assert.Nil(t, stored.MediaURL)

	// Unknown id: no row, no error.
	prior, err = s.TombstoneMessage(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestPurgeMessage_ReportsExistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, _, session := seedPair(t, s)
	msg := seedMessage(t, s, session.ID, alice.ID, nil)

	existed, err := s.PurgeMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.PurgeMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, existed)

	stored, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSelectPurgeable_Predicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, bob, session := seedPair(t, s)

	now := time.Now().UTC()
	ttl := int64(60)

	expired := seedMessage(t, s, session.ID, alice.ID, func(m *models.Message) {
		m.ExpireAfter = &ttl
		m.CreatedAt = now.Add(-2 * time.Minute)
	})
	pending := seedMessage(t, s, session.ID, alice.ID, func(m *models.Message) {
		m.ExpireAfter = &ttl
	})
	readPastGrace := seedMessage(t, s, session.ID, alice.ID, func(m *models.Message) {
		m.ExpireOnRead = true
		m.CreatedAt = now.Add(-time.Hour)
	})
	readAt := now.Add(-10 * time.Minute)
	deadline := readAt.Add(5 * time.Minute)
	require.NoError(t, s.MarkMessageRead(ctx, readPastGrace.ID, bob.ID, readAt, &deadline))

	tombstoned := seedMessage(t, s, session.ID, alice.ID, nil)
	_, err := s.TombstoneMessage(ctx, tombstoned.ID)
	require.NoError(t, err)

	live := seedMessage(t, s, session.ID, alice.ID, nil)

	candidates, err := s.SelectPurgeable(ctx, now, 5*time.Minute)
	require.NoError(t, err)

	ids := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		ids[c.ID] = true
	}
	assert.True(t, ids[expired.ID], "TTL elapsed")
	assert.True(t, ids[readPastGrace.ID], "read past grace")
	assert.True(t, ids[tombstoned.ID], "tombstoned")
	assert.False(t, ids[pending.ID], "TTL not yet elapsed")
	assert.False(t, ids[live.ID], "nothing due")
}

func TestPurgeBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, _, session := seedPair(t, s)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, seedMessage(t, s, session.ID, alice.ID, nil).ID)
	}

	deleted, err := s.PurgeBatch(ctx, ids[:3])
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	// Re-deleting the same batch affects nothing.
	deleted, err = s.PurgeBatch(ctx, ids[:3])
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	deleted, err = s.PurgeBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestRezeroTombstones_Backstop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, _, session := seedPair(t, s)
	msg := seedMessage(t, s, session.ID, alice.ID, nil)

	// Simulate a drifted tombstone that kept its payload.
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET is_deleted = 1 WHERE id = ?`, msg.ID)
	require.NoError(t, err)

	n, err := s.RezeroTombstones(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.Content)
	assert.Nil(t, stored.EncryptionKey)

	// Clean tombstones are untouched on the next pass.
	n, err = s.RezeroTombstones(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestListSessionSummaries_PinnedFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, _, first := seedPair(t, s)

	carol, err := s.CreateUser(ctx, "carol", "", "hash-c", false)
	require.NoError(t, err)
	second, _, err := s.CreateSession(ctx, alice.ID, carol.ID, true, time.Now().UTC())
	require.NoError(t, err)

	// Touch the second session so it is the most recent.
	seedMessage(t, s, second.ID, carol.ID, nil)

	summaries, err := s.ListSessionSummaries(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID)

	// Pinning the older session moves it to the top for alice only.
	require.NoError(t, s.PinSession(ctx, first.ID, alice.ID, time.Now().UTC()))

	summaries, err = s.ListSessionSummaries(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.ID, summaries[0].ID)
	assert.True(t, summaries[0].IsPinned)
}

func TestDeleteEmptySessions_Cascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, bob, session := seedPair(t, s)

	cutoff := time.Now().UTC().Add(time.Hour)
	n, err := s.DeleteEmptySessions(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Memberships cascade with the session.
	member, err := s.IsMember(ctx, session.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, member)
	member, err = s.IsMember(ctx, session.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, member)

	orphans, err := s.DeleteOrphanMemberships(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), orphans)
}
