// Package config loads engine settings from the environment and the
// escalation policy from a YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Environment variable names.
const (
	EnvDBDriver         = "COMPLIANCE_DB_DRIVER"
	EnvDBPath           = "COMPLIANCE_DB_PATH"
	EnvDatabaseURL      = "DATABASE_URL"
	EnvHTTPAddr         = "COMPLIANCE_HTTP_ADDR"
	EnvJWTSecret        = "JWT_SECRET"
	EnvFactSourceURL    = "COMPLIANCE_FACT_SOURCE_URL"
	EnvFactSourceToken  = "COMPLIANCE_FACT_SOURCE_TOKEN"
	EnvNotifyURL        = "COMPLIANCE_NOTIFY_URL"
	EnvFactTimeout      = "COMPLIANCE_FACT_TIMEOUT"
	EnvWorkers          = "COMPLIANCE_WORKERS"
	EnvMaxWriteAttempts = "COMPLIANCE_MAX_WRITE_ATTEMPTS"
	EnvRunLease         = "COMPLIANCE_RUN_LEASE"
	EnvPolicyFile       = "COMPLIANCE_POLICY_FILE"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
)

// Config holds process-wide settings.
type Config struct {
	DBDriver         string        `validate:"oneof=sqlite postgres"`
	DBPath           string        `validate:"required_if=DBDriver sqlite"`
	DatabaseURL      string        `validate:"required_if=DBDriver postgres"`
	HTTPAddr         string        `validate:"required"`
	JWTSecret        string        `validate:"omitempty,min=16"`
	FactSourceURL    string        `validate:"omitempty,url"`
	FactSourceToken  string        `validate:"-"`
	NotifyURL        string        `validate:"omitempty,url"`
	FactTimeout      time.Duration `validate:"gt=0"`
	Workers          int           `validate:"gte=1,lte=256"`
	MaxWriteAttempts int           `validate:"gte=1,lte=20"`
	RunLease         time.Duration `validate:"gt=0"`
	PolicyFile       string        `validate:"-"`
	LogLevel         string        `validate:"oneof=debug info warn error"`
	LogFormat        string        `validate:"oneof=text json"`
}

// ConfigurationError reports an invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

var validate = validator.New()

// LoadEnv loads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to load .env file", "error", err)
		}
		return
	}
	slog.Debug(".env file loaded")
}

// GetEnv returns the value of key, or defaultValue when key is unset.
func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// DefaultDBPath returns ~/.compliance/compliance.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".compliance", "compliance.db"), nil
}

// Load reads Config from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DBDriver:        strings.ToLower(GetEnv(EnvDBDriver, DriverSQLite)),
		DBPath:          GetEnv(EnvDBPath),
		DatabaseURL:     GetEnv(EnvDatabaseURL),
		HTTPAddr:        GetEnv(EnvHTTPAddr, ":8080"),
		JWTSecret:       GetEnv(EnvJWTSecret),
		FactSourceURL:   GetEnv(EnvFactSourceURL),
		FactSourceToken: GetEnv(EnvFactSourceToken),
		NotifyURL:       GetEnv(EnvNotifyURL),
		PolicyFile:      GetEnv(EnvPolicyFile),
		LogLevel:        strings.ToLower(GetEnv(EnvLogLevel, "info")),
		LogFormat:       strings.ToLower(GetEnv(EnvLogFormat, "text")),
	}

	if cfg.DBDriver == DriverSQLite && cfg.DBPath == "" {
		path, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.DBPath = path
	}

	var err error
	if cfg.FactTimeout, err = durationEnv(EnvFactTimeout, 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunLease, err = durationEnv(EnvRunLease, 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Workers, err = intEnv(EnvWorkers, 8); err != nil {
		return nil, err
	}
	if cfg.MaxWriteAttempts, err = intEnv(EnvMaxWriteAttempts, 3); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and returns the first violation as a
// ConfigurationError.
func (c *Config) Validate() error {
	return firstViolation(validate.Struct(c), envNames)
}

// RequireJWTSecret fails unless a signing secret is configured.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return &ConfigurationError{Field: EnvJWTSecret, Reason: "required to serve the HTTP API"}
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

var envNames = map[string]string{
	"DBDriver":         EnvDBDriver,
	"DBPath":           EnvDBPath,
	"DatabaseURL":      EnvDatabaseURL,
	"HTTPAddr":         EnvHTTPAddr,
	"JWTSecret":        EnvJWTSecret,
	"FactSourceURL":    EnvFactSourceURL,
	"NotifyURL":        EnvNotifyURL,
	"FactTimeout":      EnvFactTimeout,
	"Workers":          EnvWorkers,
	"MaxWriteAttempts": EnvMaxWriteAttempts,
	"RunLease":         EnvRunLease,
	"LogLevel":         EnvLogLevel,
	"LogFormat":        EnvLogFormat,
}

// firstViolation converts validator output into a ConfigurationError naming
// the offending setting.
func firstViolation(err error, names map[string]string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigurationError{Field: "config", Reason: err.Error()}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if name, ok := names[fe.StructField()]; ok {
		field = name
	}
	reason := fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	if fe.StructField() == "JWTSecret" {
		return &ConfigurationError{Field: field, Reason: fmt.Sprintf("failed %q", reason)}
	}
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf("failed %q (got %v)", reason, fe.Value())}
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := GetEnv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ConfigurationError{Field: key, Reason: fmt.Sprintf("not a duration: %q", raw)}
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := GetEnv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigurationError{Field: key, Reason: fmt.Sprintf("not an integer: %q", raw)}
	}
	return n, nil
}
