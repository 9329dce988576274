// Package memorystorage provides a map-backed implementation of the storage
// interface. It backs tests and DSN-less runs where no database is configured.
package memorystorage

import (
	"context"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	"github.com/dkotelnikov/authgate/internal/models"
	"github.com/dkotelnikov/authgate/internal/session"
	"github.com/dkotelnikov/authgate/internal/user"
)

// MemoryStorage keeps users and sessions in process memory guarded by a
// single mutex. Sessions past their expiry are swept on every save.
type MemoryStorage struct {
	mu            sync.Mutex
	usersByID     map[string]*user.User
	userIDsByName map[string]string
	sessions      map[string]*sessionRow
}

type sessionRow struct {
	userID    string
	createdAt time.Time
	expiresAt time.Time
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		usersByID:     map[string]*user.User{},
		userIDsByName: map[string]string{},
		sessions:      map[string]*sessionRow{},
	}, nil
}

// CreateUser inserts a user, enforcing username uniqueness the way the
// database constraint would.
func (m *MemoryStorage) CreateUser(ctx context.Context, usr *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.userIDsByName[usr.Username]; exists {
		return models.ErrDuplicateUsername
	}

	stored := *usr
	m.usersByID[usr.ID] = &stored
	m.userIDsByName[usr.Username] = usr.ID

	return nil
}

func (m *MemoryStorage) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usr, found := m.usersByID[userID]
	if !found {
		return nil, models.ErrUserNotFound
	}

	result := *usr

	return &result, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, found := m.userIDsByName[username]
	if !found {
		return nil, models.ErrUserNotFound
	}

	result := *m.usersByID[userID]

	return &result, nil
}

// DeleteUser removes a user row. Sessions bound to the removed user are left
// in place on purpose: the middleware must treat them as anonymous.
func (m *MemoryStorage) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	usr, found := m.usersByID[userID]
	if !found {
		return models.ErrUserNotFound
	}

	delete(m.userIDsByName, usr.Username)
	delete(m.usersByID, userID)

	return nil
}

func (m *MemoryStorage) SaveSession(ctx context.Context, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepExpired(time.Now())

	m.sessions[sess.ID()] = &sessionRow{
		userID:    sess.UserID(),
		createdAt: sess.CreatedAt(),
		expiresAt: sess.ExpiresAt(),
	}

	return nil
}

func (m *MemoryStorage) GetSessionByID(ctx context.Context, sessionID string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, found := m.sessions[sessionID]
	if !found {
		return nil, models.ErrSessionNotFound
	}

	if time.Now().After(row.expiresAt) {
		delete(m.sessions, sessionID)

		return nil, models.ErrSessionNotFound
	}

	return session.Restore(sessionID, row.userID, row.createdAt, row.expiresAt), nil
}

func (m *MemoryStorage) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)

	return nil
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) sweepExpired(now time.Time) {
	expired := funk.Filter(
		funk.Keys(m.sessions),
		func(id string) bool { return now.After(m.sessions[id].expiresAt) },
	).([]string)

	for _, id := range expired {
		delete(m.sessions, id)
	}
}
