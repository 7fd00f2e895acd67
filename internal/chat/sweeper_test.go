package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanishlabs/vanish/internal/store"
)

// fakeBlobs records removed media refs.
type fakeBlobs struct {
	removed []string
}

func (f *fakeBlobs) Remove(url string) error {
	f.removed = append(f.removed, url)
	return nil
}

// brokenPurgeStore fails every batch deletion, leaving the rows live.
type brokenPurgeStore struct {
	store.DataStore
}

func (brokenPurgeStore) PurgeBatch(ctx context.Context, ids []string) (int64, error) {
	return 0, errors.New("deadlock detected")
}

// deniedGuard simulates another sweep holding the lock.
type deniedGuard struct{}

func (deniedGuard) AcquireSweepLock(ctx context.Context, ttl time.Duration) bool { return false }
func (deniedGuard) ReleaseSweepLock(ctx context.Context)                         {}

func newSweepEnv(t *testing.T, blobs *fakeBlobs) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	alice, err := db.CreateUser(ctx, "alice", "", "hash-alice", false)
	require.NoError(t, err)
	bob, err := db.CreateUser(ctx, "bob", "", "hash-bob", false)
	require.NoError(t, err)

	clock := newFakeClock()
	engine := NewEngine(db, blobs, zerolog.Nop(), Options{
		ReadBurnGrace:    5 * time.Minute,
		SessionRetention: 7 * 24 * time.Hour,
		Now:              clock.Now,
	})

	return &testEnv{engine: engine, db: db, clock: clock, alice: alice.ID, bob: bob.ID}
}

func TestSweep_DeletesAllEligible(t *testing.T) {
	env := newSweepEnv(t, nil)
	ctx := context.Background()
	sid := env.session(t)

	// Past its absolute TTL.
	expired := env.send(t, sid, env.alice, SendInput{ExpireAfter: int64Ptr(60)})
	// Burn-on-read, read, grace elapsed.
	read := env.send(t, sid, env.alice, SendInput{ExpireOnRead: true})
	require.NoError(t, env.engine.MarkRead(ctx, read.ID, env.bob))
	// Soft-deleted tombstone.
	deleted := env.send(t, sid, env.alice, SendInput{})
	require.NoError(t, env.engine.SoftDelete(ctx, deleted.ID, env.alice))
	// Live message, nothing due.
	live := env.send(t, sid, env.alice, SendInput{})

	env.clock.Advance(6 * time.Minute)

	result, err := env.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.DeletedCount)
	assert.False(t, result.Skipped)

	for _, id := range []string{expired.ID, read.ID, deleted.ID} {
		msg, err := env.db.GetMessage(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, msg, "message %s should be physically gone", id)
	}

	msg, err := env.db.GetMessage(ctx, live.ID)
	require.NoError(t, err)
	assert.NotNil(t, msg)
}

func TestSweep_SecondRunDeletesNothing(t *testing.T) {
	env := newSweepEnv(t, nil)
	ctx := context.Background()
	sid := env.session(t)

	env.send(t, sid, env.alice, SendInput{ExpireAfter: int64Ptr(60)})
	env.clock.Advance(2 * time.Minute)

	first, err := env.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.DeletedCount)

	second, err := env.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.DeletedCount)
}

func TestSweep_ReadWithinGraceNotEligible(t *testing.T) {
	env := newSweepEnv(t, nil)
	ctx := context.Background()
	sid := env.session(t)

	msg := env.send(t, sid, env.alice, SendInput{ExpireOnRead: true})
	require.NoError(t, env.engine.MarkRead(ctx, msg.ID, env.bob))

	env.clock.Advance(4 * time.Minute)

	result, err := env.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.DeletedCount)

	stored, err := env.db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestSweep_UnreadBurnOnReadSurvives(t *testing.T) {
	env := newSweepEnv(t, nil)
	ctx := context.Background()
	sid := env.session(t)

	// Never read: burn-on-read without a TTL has no deadline at all.
	msg := env.send(t, sid, env.alice, SendInput{ExpireOnRead: true})

	env.clock.Advance(30 * 24 * time.Hour)

	result, err := env.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.DeletedCount)

	stored, err := env.db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestSweep_RemovesMediaAfterCommit(t *testing.T) {
	blobs := &fakeBlobs{}
	env := newSweepEnv(t, blobs)
	ctx := context.Background()
	sid := env.session(t)

	env.send(t, sid, env.alice, SendInput{
		ContentType:   "image",
		MediaURL:      "media/abc.jpg",
		ExpireAfter:   int64Ptr(60),
		EncryptionKey: "k",
	})

	env.clock.Advance(2 * time.Minute)

	result, err := env.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.DeletedCount)
	assert.Equal(t, int64(1), result.MediaFilesCount)
	assert.Equal(t, []string{"media/abc.jpg"}, blobs.removed)
}

func TestSweep_FailedBatchKeepsMedia(t *testing.T) {
	blobs := &fakeBlobs{}
	env := newSweepEnv(t, blobs)
	ctx := context.Background()
	sid := env.session(t)

	msg := env.send(t, sid, env.alice, SendInput{
		ContentType: "image",
		MediaURL:    "media/evidence.jpg",
		ExpireAfter: int64Ptr(60),
	})

	env.clock.Advance(2 * time.Minute)

	// Deletions roll back, so the rows survive and their blobs must too.
	broken := NewEngine(brokenPurgeStore{env.db}, blobs, zerolog.Nop(), Options{
		ReadBurnGrace: 5 * time.Minute,
		Now:           env.clock.Now,
	})

	result, err := broken.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.DeletedCount)
	assert.Equal(t, int64(0), result.MediaFilesCount)
	assert.Empty(t, blobs.removed)

	stored, err := env.db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.MediaURL)
	assert.Equal(t, "media/evidence.jpg", *stored.MediaURL)

	// A healthy sweep afterwards picks the same row up and unlinks the blob.
	result, err = env.engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.DeletedCount)
	assert.Equal(t, []string{"media/evidence.jpg"}, blobs.removed)
}

func TestSweep_GuardDenied(t *testing.T) {
	env := newSweepEnv(t, nil)
	env.engine.guard = deniedGuard{}

	result, err := env.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, int64(0), result.DeletedCount)
}

func TestMaintain_RemovesOldEmptySessions(t *testing.T) {
	env := newSweepEnv(t, nil)
	ctx := context.Background()

	// Empty session, will age past retention.
	empty := env.session(t)
	// Session with traffic, same age, must survive.
	carol, err := env.db.CreateUser(ctx, "carol", "", "hash-carol", false)
	require.NoError(t, err)
	active, _, err := env.engine.FindOrCreateSession(ctx, env.alice, carol.ID, true)
	require.NoError(t, err)
	env.send(t, active, env.alice, SendInput{})

	env.clock.Advance(8 * 24 * time.Hour)

	result, err := env.engine.Maintain(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.EmptySessionsRemoved)
	assert.Equal(t, int64(0), result.RezeroedMessages)

	gone, err := env.db.GetSession(ctx, empty)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := env.db.GetSession(ctx, active)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestMaintain_FreshEmptySessionSurvives(t *testing.T) {
	env := newSweepEnv(t, nil)
	ctx := context.Background()

	sid := env.session(t)
	env.clock.Advance(24 * time.Hour)

	result, err := env.engine.Maintain(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.EmptySessionsRemoved)

	session, err := env.db.GetSession(ctx, sid)
	require.NoError(t, err)
	assert.NotNil(t, session)
}
