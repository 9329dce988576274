// Package storage declares the persistence contract shared by the
// PostgreSQL, SQLite and in-memory backends.
package storage

import (
	"context"

	"github.com/dkotelnikov/authgate/internal/session"
	"github.com/dkotelnikov/authgate/internal/user"
)

// Storage is the full persistence surface: the credential store (users)
// and the session store. All operations are single statements; concurrency
// safety is delegated to the underlying database.
type Storage interface {
	// CreateUser inserts a new user row. Returns models.ErrDuplicateUsername
	// when the username uniqueness constraint rejects the insert.
	CreateUser(ctx context.Context, usr *user.User) error

	// GetUserByID fetches a user by UUID. Returns models.ErrUserNotFound
	// when no row matches.
	GetUserByID(ctx context.Context, userID string) (*user.User, error)

	// GetUserByUsername fetches a user by the case-sensitive username.
	// Returns models.ErrUserNotFound when no row matches.
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)

	// SaveSession inserts or updates the session row; last write wins.
	SaveSession(ctx context.Context, sess *session.Session) error

	// GetSessionByID fetches a live session. Expired rows behave as absent
	// and yield models.ErrSessionNotFound.
	GetSessionByID(ctx context.Context, sessionID string) (*session.Session, error)

	// DeleteSession removes the session row; deleting an unknown id is a no-op.
	DeleteSession(ctx context.Context, sessionID string) error

	Ping(ctx context.Context) error

	Close() error
}
