// Package models holds the request models and shared error values used by
// the handlers, the service layer, and the storage implementations.
package models

import "errors"

// SignUpForm carries the parsed fields of a submitted sign-up form.
type SignUpForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// LoginForm carries the parsed fields of a submitted log-in form.
type LoginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Storage backend kinds selectable via configuration.
const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeSQLite
	StorageTypeMemory
)

// ErrDuplicateUsername is returned when a sign-up collides with an existing
// username. The database uniqueness constraint is the arbiter; concurrent
// sign-ups with the same name race on it and the loser receives this error.
var ErrDuplicateUsername = errors.New("username already taken")

// ErrUserNotFound is returned when no user row matches the requested id or username.
var ErrUserNotFound = errors.New("user not found")

// ErrSessionNotFound is returned when no live session row matches the
// requested id. Expired rows are reported as not found.
var ErrSessionNotFound = errors.New("session not found")
