// Package session models the server-side session record and its state
// machine. A session is either anonymous or bound to exactly one user id;
// Bind and Unbind are the only transitions between the two states.
package session

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Session is the server-side record of per-client state keyed by an opaque
// identifier sent via cookie. The zero state is anonymous.
type Session struct {
	id        string
	userID    string
	createdAt time.Time
	expiresAt time.Time

	dirty     bool
	destroyed bool
}

// New creates a fresh anonymous session living for the given duration.
func New(ttl time.Duration) *Session {
	now := time.Now()

	return &Session{
		id:        ulid.Make().String(),
		createdAt: now,
		expiresAt: now.Add(ttl),
		dirty:     true,
	}
}

// Restore rebuilds a session from its persisted fields. Storage
// implementations use it when loading rows; the result is considered clean.
func Restore(id, userID string, createdAt, expiresAt time.Time) *Session {
	return &Session{
		id:        id,
		userID:    userID,
		createdAt: createdAt,
		expiresAt: expiresAt,
	}
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the bound user id, or an empty string for anonymous sessions.
func (s *Session) UserID() string { return s.userID }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// ExpiresAt returns the session expiration time.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Authenticated reports whether the session is bound to a user.
func (s *Session) Authenticated() bool { return s.userID != "" }

// Expired reports whether the session has passed its expiration time.
func (s *Session) Expired(now time.Time) bool { return now.After(s.expiresAt) }

// Bind transitions the session to the authenticated state. The session id is
// rotated so a cookie issued before authentication cannot be fixated onto the
// authenticated session. The previous id is returned so the caller can remove
// the stale row. Binding revives a session previously marked destroyed: the
// rotated row must be saved, not deleted.
func (s *Session) Bind(userID string) (oldID string) {
	oldID = s.id
	s.id = ulid.Make().String()
	s.userID = userID
	s.destroyed = false
	s.dirty = true

	return oldID
}

// Unbind clears the user binding and marks the session destroyed. The row is
// deleted rather than kept around anonymous, matching a log-out.
func (s *Session) Unbind() {
	s.userID = ""
	s.destroyed = true
	s.dirty = true
}

// Dirty reports whether the session carries unpersisted mutations.
func (s *Session) Dirty() bool { return s.dirty }

// Destroyed reports whether the session row should be removed instead of saved.
func (s *Session) Destroyed() bool { return s.destroyed }

// MarkSaved resets the dirty flag after a successful persist.
func (s *Session) MarkSaved() { s.dirty = false }
