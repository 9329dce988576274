// Package mockstorage provides a testify-based mock implementation of the
// storage interface. It is used for unit testing HTTP handlers and the
// session middleware by simulating storage behavior, including failures.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dkotelnikov/authgate/internal/session"
	"github.com/dkotelnikov/authgate/internal/user"
)

// StorageMock is a testify mock that implements the storage interface.
type StorageMock struct {
	mock.Mock
}

// CreateUser mocks inserting a user row.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)

	return args.Error(0)
}

// GetUserByID mocks fetching a user by id.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)

	return usr, args.Error(1)
}

// GetUserByUsername mocks fetching a user by username.
func (m *StorageMock) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	args := m.Called(ctx, username)
	usr, _ := args.Get(0).(*user.User)

	return usr, args.Error(1)
}

// SaveSession mocks upserting a session row.
func (m *StorageMock) SaveSession(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)

	return args.Error(0)
}

// GetSessionByID mocks fetching a session row.
func (m *StorageMock) GetSessionByID(ctx context.Context, sessionID string) (*session.Session, error) {
	args := m.Called(ctx, sessionID)
	sess, _ := args.Get(0).(*session.Session)

	return sess, args.Error(1)
}

// DeleteSession mocks removing a session row.
func (m *StorageMock) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)

	return args.Error(0)
}

// Ping mocks the storage health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// Close mocks releasing the storage resources.
func (m *StorageMock) Close() error {
	args := m.Called()

	return args.Error(0)
}
