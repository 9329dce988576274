// Package sqlitedb provides a SQLite-backed implementation of the storage
// interface for single-file deployments. Both tables are created at
// construction if missing; timestamps are stored as Unix seconds.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/dkotelnikov/authgate/internal/models"
	"github.com/dkotelnikov/authgate/internal/session"
	"github.com/dkotelnikov/authgate/internal/user"
)

var sessionTableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteDB is a SQLite-backed implementation of the storage interface.
type SQLiteDB struct {
	database     *sql.DB
	sessionTable string
}

// New opens (or creates) the SQLite database file and ensures the users
// and session tables exist.
func New(ctx context.Context, dbFileName, sessionTable string) (*SQLiteDB, error) {
	if !sessionTableNamePattern.MatchString(sessionTable) {
		return nil, fmt.Errorf("invalid session table name %q", sessionTable)
	}

	database, err := sql.Open("sqlite3", dbFileName)
	if err != nil {
		return nil, err
	}

	result := &SQLiteDB{
		database:     database,
		sessionTable: sessionTable,
	}

	if err := result.createTables(ctx); err != nil {
		return nil, err
	}

	return result, nil
}

func (db *SQLiteDB) createTables(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL
			)
		`,
	)
	if err != nil {
		return err
	}

	_, err = db.database.ExecContext(
		ctx,
		fmt.Sprintf(
			`
				CREATE TABLE IF NOT EXISTS %q (
					id TEXT PRIMARY KEY,
					user_id TEXT,
					created_at INTEGER NOT NULL,
					expires_at INTEGER NOT NULL
				)
			`,
			db.sessionTable,
		),
	)

	return err
}

// CreateUser inserts a new user row, mapping the uniqueness constraint
// violation to models.ErrDuplicateUsername.
func (db *SQLiteDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, username, password_hash) VALUES (?, ?, ?)`,
		usr.ID,
		usr.Username,
		usr.PasswordHash,
	)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return models.ErrDuplicateUsername
	}

	return err
}

// GetUserByID fetches a user by their UUID.
func (db *SQLiteDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	usr := &user.User{ID: userID}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT username, password_hash FROM users WHERE id = ?`,
		userID,
	).Scan(&usr.Username, &usr.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return usr, nil
}

// GetUserByUsername fetches a user by the case-sensitive username.
func (db *SQLiteDB) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	usr := &user.User{Username: username}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT id, password_hash FROM users WHERE username = ?`,
		username,
	).Scan(&usr.ID, &usr.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return usr, nil
}

// SaveSession upserts the session row; the last write for a given id wins.
func (db *SQLiteDB) SaveSession(ctx context.Context, sess *session.Session) error {
	boundUserID := sql.NullString{
		String: sess.UserID(),
		Valid:  sess.UserID() != "",
	}

	_, err := db.database.ExecContext(
		ctx,
		fmt.Sprintf(
			`
				INSERT INTO %q (id, user_id, created_at, expires_at)
					VALUES (?, ?, ?, ?)
					ON CONFLICT (id) DO UPDATE
					SET
						user_id = EXCLUDED.user_id,
						expires_at = EXCLUDED.expires_at
			`,
			db.sessionTable,
		),
		sess.ID(),
		boundUserID,
		sess.CreatedAt().Unix(),
		sess.ExpiresAt().Unix(),
	)

	return err
}

// GetSessionByID fetches a live session row. Expired rows behave as absent.
func (db *SQLiteDB) GetSessionByID(ctx context.Context, sessionID string) (*session.Session, error) {
	var (
		boundUserID   sql.NullString
		createdAtUnix int64
		expiresAtUnix int64
	)

	err := db.database.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT user_id, created_at, expires_at FROM %q WHERE id = ?`, db.sessionTable),
		sessionID,
	).Scan(&boundUserID, &createdAtUnix, &expiresAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	expiresAt := time.Unix(expiresAtUnix, 0)
	if time.Now().After(expiresAt) {
		if err := db.DeleteSession(ctx, sessionID); err != nil {
			return nil, err
		}

		return nil, models.ErrSessionNotFound
	}

	return session.Restore(
		sessionID,
		boundUserID.String,
		time.Unix(createdAtUnix, 0),
		expiresAt,
	), nil
}

// DeleteSession removes the session row. Deleting an unknown id is a no-op.
func (db *SQLiteDB) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := db.database.ExecContext(
		ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, db.sessionTable),
		sessionID,
	)

	return err
}

// Ping verifies the database connection.
func (db *SQLiteDB) Ping(ctx context.Context) error {
	return db.database.PingContext(ctx)
}

// Close closes the underlying database handle.
func (db *SQLiteDB) Close() error {
	return db.database.Close()
}
