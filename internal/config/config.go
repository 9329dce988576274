// Package config loads the application configuration from command-line
// flags and environment variables (optionally via a .env file) and
// validates the result.
package config

import (
	"flag"
	"log"
	"regexp"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the full configuration surface of the service.
type Config struct {
	// RunAddr is the address and port the HTTP server listens on.
	RunAddr string `env:"RUN_ADDR" validate:"hostname_port"`

	// DatabaseDSN selects the PostgreSQL backend when non-empty.
	DatabaseDSN string `env:"DATABASE_DSN"`

	// SQLiteDBPath selects the SQLite backend when non-empty and no DSN is set.
	SQLiteDBPath string `env:"SQLITE_DB_PATH"`

	// SessionSecret signs the session cookie.
	SessionSecret string `env:"SESSION_SECRET" validate:"required"`

	// SessionCookieName is the name of the session cookie.
	SessionCookieName string `env:"SESSION_COOKIE_NAME" validate:"required"`

	// SessionTableName is the table holding server-side session rows.
	// It is created automatically if missing.
	SessionTableName string `env:"SESSION_TABLE_NAME" validate:"tablename"`

	// SessionTTL is the session (and cookie) lifetime.
	SessionTTL time.Duration `env:"SESSION_TTL"`

	// SignupAutoLogin makes a successful sign-up bind the current session
	// to the new user. Off by default: the user logs in separately.
	SignupAutoLogin bool `env:"SIGNUP_AUTO_LOGIN"`

	LogLevel string `env:"LOG_LEVEL" validate:"loglevel"`

	// MigrationsDir is the directory with goose migrations for the users table.
	MigrationsDir string `env:"MIGRATIONS_DIR" validate:"required"`

	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
}

var defaultConfig = Config{
	RunAddr:             ":3000",
	SessionCookieName:   "session_id",
	SessionTableName:    "user_sessions",
	SessionTTL:          24 * time.Hour,
	LogLevel:            "info",
	MigrationsDir:       "migrations",
	DBConnectionTimeout: 10 * time.Second,
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func validateTableName(fieldLevel validator.FieldLevel) bool {
	return tableNamePattern.MatchString(fieldLevel.Field().String())
}

func (c *Config) validate() error {
	validate := validator.New()

	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}

	if err := validate.RegisterValidation("tablename", validateTableName); err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption customizes the construction of a Config.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips the flag.Parse call; used by tests where
// the test binary owns the flag set.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the configuration from defaults, command-line flags and
// environment variables, in increasing priority, and validates it.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := defaultConfig

	if !options.disableFlagsParsing {
		flag.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
		flag.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
		flag.StringVar(&values.SQLiteDBPath, "f", values.SQLiteDBPath, "SQLite database file name")
		flag.StringVar(&values.SessionSecret, "s", values.SessionSecret, "secret used to sign the session cookie")
		flag.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
		flag.Parse()
	}

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}

	if valuesFromEnv.RunAddr != "" {
		values.RunAddr = valuesFromEnv.RunAddr
	}

	if valuesFromEnv.DatabaseDSN != "" {
		values.DatabaseDSN = valuesFromEnv.DatabaseDSN
	}

	if valuesFromEnv.SQLiteDBPath != "" {
		values.SQLiteDBPath = valuesFromEnv.SQLiteDBPath
	}

	if valuesFromEnv.SessionSecret != "" {
		values.SessionSecret = valuesFromEnv.SessionSecret
	}

	if valuesFromEnv.SessionCookieName != "" {
		values.SessionCookieName = valuesFromEnv.SessionCookieName
	}

	if valuesFromEnv.SessionTableName != "" {
		values.SessionTableName = valuesFromEnv.SessionTableName
	}

	if valuesFromEnv.SessionTTL != 0 {
		values.SessionTTL = valuesFromEnv.SessionTTL
	}

	if valuesFromEnv.SignupAutoLogin {
		values.SignupAutoLogin = true
	}

	if valuesFromEnv.LogLevel != "" {
		values.LogLevel = valuesFromEnv.LogLevel
	}

	if valuesFromEnv.MigrationsDir != "" {
		values.MigrationsDir = valuesFromEnv.MigrationsDir
	}

	if valuesFromEnv.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = valuesFromEnv.DBConnectionTimeout
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return &values, nil
}
