// Package postgresdb provides the PostgreSQL-backed implementation of the
// storage interface. The users table is managed by goose migrations; the
// session table is created on startup under a configurable name, so the
// store works against a fresh database without manual setup.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dkotelnikov/authgate/internal/logger"
	"github.com/dkotelnikov/authgate/internal/models"
	"github.com/dkotelnikov/authgate/internal/session"
	"github.com/dkotelnikov/authgate/internal/user"
)

const uniqueViolationCode = "23505"

var sessionTableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresDB is a PostgreSQL-backed implementation of the storage interface.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
	sessionTable      string
}

// New establishes a connection to the PostgreSQL database, runs schema
// migrations for the users table, creates the session table if missing,
// and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	sessionTable string,
) (*PostgresDB, error) {
	if !sessionTableNamePattern.MatchString(sessionTable) {
		return nil, fmt.Errorf("invalid session table name %q", sessionTable)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
		sessionTable:      sessionTable,
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("error while `goose.Up()` calling: %w", err)
	}

	if err := result.createSessionTable(ctx); err != nil {
		return nil, fmt.Errorf("error while the session table creation: %w", err)
	}

	return result, nil
}

func (db *PostgresDB) createSessionTable(ctx context.Context) error {
	query := fmt.Sprintf(
		`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				user_id UUID REFERENCES users (id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			)
		`,
		db.quotedSessionTable(),
	)
	_, err := db.database.ExecContext(ctx, query)

	return err
}

func (db *PostgresDB) quotedSessionTable() string {
	return `"` + db.sessionTable + `"`
}

// CreateUser inserts a new user row. A username collision surfaces as
// models.ErrDuplicateUsername; the uniqueness constraint is the arbiter
// for concurrent sign-ups.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
		usr.ID,
		usr.Username,
		usr.PasswordHash,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return models.ErrDuplicateUsername
	}

	return err
}

// GetUserByID fetches a user by their UUID.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	usr := &user.User{ID: userID}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT username, password_hash FROM users WHERE id = $1`,
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
func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	usr := &user.User{Username: username}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT id, password_hash FROM users WHERE username = $1`,
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
func (db *PostgresDB) SaveSession(ctx context.Context, sess *session.Session) error {
	boundUserID := sql.NullString{
		String: sess.UserID(),
		Valid:  sess.UserID() != "",
	}

	query := fmt.Sprintf(
		`
			INSERT INTO %s (id, user_id, created_at, expires_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE
				SET
					user_id = EXCLUDED.user_id,
					expires_at = EXCLUDED.expires_at
		`,
		db.quotedSessionTable(),
	)
	_, err := db.database.ExecContext(
		ctx,
		query,
		sess.ID(),
		boundUserID,
		sess.CreatedAt(),
		sess.ExpiresAt(),
	)

	return err
}

// GetSessionByID fetches a live session row. Expired rows behave as absent
// and are removed in the background.
func (db *PostgresDB) GetSessionByID(ctx context.Context, sessionID string) (*session.Session, error) {
	var (
		boundUserID sql.NullString
		createdAt   time.Time
		expiresAt   time.Time
	)

	query := fmt.Sprintf(
		`SELECT user_id, created_at, expires_at FROM %s WHERE id = $1`,
		db.quotedSessionTable(),
	)
	err := db.database.QueryRowContext(ctx, query, sessionID).
		Scan(&boundUserID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(expiresAt) {
		go func() {
			if err := db.DeleteSession(context.Background(), sessionID); err != nil {
				logger.Log.Debugln("Error deleting the expired session:", err)
			}
		}()

		return nil, models.ErrSessionNotFound
	}

	return session.Restore(sessionID, boundUserID.String, createdAt, expiresAt), nil
}

// DeleteSession removes the session row. Deleting an unknown id is a no-op.
func (db *PostgresDB) DeleteSession(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, db.quotedSessionTable())
	_, err := db.database.ExecContext(ctx, query, sessionID)

	return err
}

// Ping verifies the database connection within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(pingCtx)
}

// Close closes the underlying connection pool.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}
