// Package service implements the business layer: user registration and
// credential verification over a narrow storage interface.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dkotelnikov/authgate/internal/logger"
	"github.com/dkotelnikov/authgate/internal/models"
	"github.com/dkotelnikov/authgate/internal/password"
	"github.com/dkotelnikov/authgate/internal/user"
)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) error
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
}

// ErrInvalidCredentials is returned for both an unknown identifier and a
// wrong password. The two causes are distinguished internally (debug log
// only) but callers must not be able to tell them apart, so that the login
// form cannot be used to enumerate registered identifiers.
var ErrInvalidCredentials = errors.New("incorrect username or password")

// Service provides sign-up and authentication on top of the credential store.
type Service struct {
	db userKeeper
}

func New(db userKeeper) *Service {
	return &Service{db: db}
}

// SignUp hashes the password and inserts a new user. The computed hash, and
// never the plaintext, is what reaches the store. A username collision
// propagates as models.ErrDuplicateUsername; the database constraint is the
// arbiter when two sign-ups race on the same name.
func (s *Service) SignUp(ctx context.Context, username, plaintext string) (*user.User, error) {
	passwordHash, err := password.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	usr := &user.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
	}

	if err := s.db.CreateUser(ctx, usr); err != nil {
		return nil, err
	}

	return usr, nil
}

// Authenticate looks up the user by the case-sensitive identifier and
// verifies the password against the stored hash. It performs exactly one
// read and no writes.
func (s *Service) Authenticate(ctx context.Context, identifier, plaintext string) (*user.User, error) {
	usr, err := s.db.GetUserByUsername(ctx, identifier)
	if errors.Is(err, models.ErrUserNotFound) {
		logger.Log.Debugln("login attempt with unknown identifier")

		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !password.Verify(plaintext, usr.PasswordHash) {
		logger.Log.Debugln("login attempt with wrong password")

		return nil, ErrInvalidCredentials
	}

	return usr, nil
}
