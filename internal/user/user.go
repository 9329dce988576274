// Package user defines the user model used throughout the application,
// particularly for authentication and session binding.
package user

// User represents a system user stored in the credential store.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	// Username is the unique identifier the user logs in with.
	// Depending on deployment it may hold a plain username or an email address.
	Username string

	// PasswordHash is the bcrypt hash of the user's password.
	// The plaintext password is never stored or logged.
	PasswordHash string
}
