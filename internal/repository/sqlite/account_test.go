package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-host/internal/apperror"
	"github.com/sakif/social-host/internal/model"
	"github.com/sakif/social-host/internal/vfile"
)

// newTestDB returns a fresh in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestAccount(nickname string) *model.Account {
	return &model.Account{
		Nickname:       nickname,
		VFileToken:     vfile.NewToken(),
		VFileIssuedAt:  1700000000,
		VFileSignature: "sig",
		Content:        "#+TITLE: test",
	}
}

func createTestAccount(t *testing.T, db *DB, nickname string) *model.Account {
	t.Helper()
	a := newTestAccount(nickname)
	require.NoError(t, db.Create(context.Background(), a))
	return a
}

func TestCreate(t *testing.T) {
	db := newTestDB(t)
	a := newTestAccount("alice")

	require.NoError(t, db.Create(context.Background(), a))

	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, a.CreatedAt, a.LastAccessedAt)
}

func TestCreate_VerifyPersistence(t *testing.T) {
	db := newTestDB(t)
	original := createTestAccount(t, db, "alice")

	found, err := db.GetByNickname(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, original.ID, found.ID)
	assert.Equal(t, original.VFileToken, found.VFileToken)
	assert.Equal(t, original.VFileIssuedAt, found.VFileIssuedAt)
	assert.Equal(t, original.VFileSignature, found.VFileSignature)
	assert.Equal(t, original.Content, found.Content)
	assert.Empty(t, found.RedirectURL)
	assert.WithinDuration(t, original.LastAccessedAt, found.LastAccessedAt, time.Millisecond)
}

func TestCreate_DuplicateNickname(t *testing.T) {
	db := newTestDB(t)
	createTestAccount(t, db, "alice")

	err := db.Create(context.Background(), newTestAccount("alice"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, apperror.CodeNicknameTaken, apperror.CodeOf(err))
}

func TestCreate_DuplicateToken(t *testing.T) {
	db := newTestDB(t)
	first := createTestAccount(t, db, "alice")

	second := newTestAccount("bob")
	second.VFileToken = first.VFileToken
	err := db.Create(context.Background(), second)

	require.Error(t, err)
	assert.Equal(t, apperror.CodeTokenCollision, apperror.CodeOf(err))
}

// Concurrent signups for one nickname: the UNIQUE constraint must let
// exactly one through. Uses a file database so the writers really contend.
func TestCreate_ConcurrentSameNickname(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "race.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		taken     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Create(context.Background(), newTestAccount("racer"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperror.CodeOf(err) == apperror.CodeNicknameTaken:
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, taken)
}

func TestGetByToken(t *testing.T) {
	db := newTestDB(t)
	created := createTestAccount(t, db, "alice")
	createTestAccount(t, db, "bob")

	found, err := db.GetByToken(context.Background(), created.VFileToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Nickname)
}

func TestGet_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByToken(context.Background(), vfile.NewToken())
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = db.GetByNickname(context.Background(), "nobody")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUpdateContent(t *testing.T) {
	db := newTestDB(t)
	a := createTestAccount(t, db, "alice")

	require.NoError(t, db.UpdateContent(context.Background(), a.ID, "hello"))

	found, err := db.GetByNickname(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "hello", found.Content)
	assert.True(t, !found.UpdatedAt.Before(a.UpdatedAt))
}

func TestUpdateRedirect_SetAndClear(t *testing.T) {
	db := newTestDB(t)
	a := createTestAccount(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, db.UpdateRedirect(ctx, a.ID, "https://example.org/social.org"))
	found, err := db.GetByNickname(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/social.org", found.RedirectURL)
	assert.True(t, found.IsRedirected())

	require.NoError(t, db.UpdateRedirect(ctx, a.ID, ""))
	found, err = db.GetByNickname(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found.IsRedirected())
}

func TestUpdate_MissingRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	assert.True(t, errors.Is(db.UpdateContent(ctx, "missing", "x"), apperror.ErrNotFound))
	assert.True(t, errors.Is(db.UpdateRedirect(ctx, "missing", ""), apperror.ErrNotFound))
	assert.True(t, errors.Is(db.Touch(ctx, "missing", time.Now()), apperror.ErrNotFound))
	assert.True(t, errors.Is(db.Delete(ctx, "missing"), apperror.ErrNotFound))
}

func TestTouch(t *testing.T) {
	db := newTestDB(t)
	createTestAccount(t, db, "alice")
	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, db.Touch(context.Background(), "alice", at))

	found, err := db.GetByNickname(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, found.LastAccessedAt.Equal(at), "LastAccessedAt = %v, want %v", found.LastAccessedAt, at)
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	a := createTestAccount(t, db, "alice")

	require.NoError(t, db.Delete(context.Background(), a.ID))

	_, err := db.GetByNickname(context.Background(), "alice")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	// The nickname is free again.
	createTestAccount(t, db, "alice")
}

func TestSweepQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		a := newTestAccount(fmt.Sprintf("user%d", i))
		a.CreatedAt = now.Add(-age)
		require.NoError(t, db.Create(ctx, a))
	}

	cutoff := now.Add(-30 * 24 * time.Hour)
	stale, err := db.ListStale(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"user0", "user1"}, stale)

	// user1 is read between listing and deleting; it must survive.
	require.NoError(t, db.Touch(ctx, "user1", now))

	deleted, err := db.DeleteIfStale(ctx, "user0", cutoff)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.DeleteIfStale(ctx, "user1", cutoff)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = db.GetByNickname(ctx, "user1")
	assert.NoError(t, err)
	_, err = db.GetByNickname(ctx, "user2")
	assert.NoError(t, err)
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}
