package memorystorage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkotelnikov/authgate/internal/models"
	"github.com/dkotelnikov/authgate/internal/session"
	"github.com/dkotelnikov/authgate/internal/user"
)

func newTestStorage(t *testing.T) *MemoryStorage {
	t.Helper()

	db, err := New()
	require.NoError(t, err)

	return db
}

func TestCreateAndGetUser(t *testing.T) {
	db := newTestStorage(t)
	ctx := context.Background()

	usr := &user.User{ID: "id-1", Username: "alice", PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(ctx, usr))

	byID, err := db.GetUserByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-1", byName.ID)
	assert.Equal(t, "hash", byName.PasswordHash)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	db := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, db.CreateUser(ctx, &user.User{ID: "id-1", Username: "alice"}))

	err := db.CreateUser(ctx, &user.User{ID: "id-2", Username: "alice"})
	assert.ErrorIs(t, err, models.ErrDuplicateUsername)

	// The loser must not overwrite the winner.
	winner, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-1", winner.ID)
}

func TestGetUserNotFound(t *testing.T) {
	db := newTestStorage(t)
	ctx := context.Background()

	_, err := db.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	_, err = db.GetUserByUsername(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestUsernameLookupIsCaseSensitive(t *testing.T) {
	db := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, db.CreateUser(ctx, &user.User{ID: "id-1", Username: "Alice"}))

	_, err := db.GetUserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestSessionRoundTrip(t *testing.T) {
	db := newTestStorage(t)
	ctx := context.Background()

	sess := session.New(time.Hour)
	sess.Bind("user-1")
	require.NoError(t, db.SaveSession(ctx, sess))

	loaded, err := db.GetSessionByID(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID())
	assert.False(t, loaded.Dirty())

	require.NoError(t, db.DeleteSession(ctx, sess.ID()))

	_, err = db.GetSessionByID(ctx, sess.ID())
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestExpiredSessionBehavesAsAbsent(t *testing.T) {
	db := newTestStorage(t)
	ctx := context.Background()

	sess := session.New(-time.Minute)
	require.NoError(t, db.SaveSession(ctx, sess))

	_, err := db.GetSessionByID(ctx, sess.ID())
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestSaveSessionLastWriteWins(t *testing.T) {
	db := newTestStorage(t)
	ctx := context.Background()

	sess := session.New(time.Hour)
	require.NoError(t, db.SaveSession(ctx, sess))

	rebound := session.Restore(sess.ID(), "user-2", sess.CreatedAt(), sess.ExpiresAt())
	require.NoError(t, db.SaveSession(ctx, rebound))

	loaded, err := db.GetSessionByID(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, "user-2", loaded.UserID())
}

func TestDeleteSessionIsIdempotent(t *testing.T) {
	db := newTestStorage(t)

	assert.NoError(t, db.DeleteSession(context.Background(), "missing"))
}
