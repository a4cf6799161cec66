package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Upload       UploadConfig
	Suggestion   SuggestionConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name           string
	Env            string
	Host           string
	Port           string
	Version        string
	RequestTimeout time.Duration
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return net.JoinHostPort(a.Host, a.Port)
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	RunMigrations   bool
	MigrationsDir   string
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines token and password hashing parameters.
type AuthConfig struct {
	JWTSecret  string
	Issuer     string
	TokenTTL   time.Duration
	BcryptCost int
}

// NotificationConfig selects the Redis channel ticket events are published on.
type NotificationConfig struct {
	Channel string
}

// UploadConfig controls attachment storage.
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// SuggestionConfig is the suggestion gateway surface read from the environment.
type SuggestionConfig struct {
	Endpoint     string
	Token        string
	Timeout      time.Duration
	Provider     string
	Model        string
	SystemPrompt string
}

const devSecret = "dev-secret"

// Load reads .env when present, then the process environment. Malformed numeric or
// boolean values are reported together instead of silently replaced by defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		App: AppConfig{
			Name:           env.str("APP_NAME", "repair-desk"),
			Env:            env.str("APP_ENV", "development"),
			Host:           env.str("APP_HOST", "0.0.0.0"),
			Port:           env.str("APP_PORT", "8080"),
			Version:        env.str("APP_VERSION", "dev"),
			RequestTimeout: env.seconds("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             env.str("POSTGRES_DSN", ""),
			MaxConns:        int32(env.integer("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(env.integer("POSTGRES_MIN_CONNS", 2)),
			MaxConnIdleTime: env.seconds("POSTGRES_CONN_MAX_IDLE_SECONDS", 30),
			MaxConnLifetime: env.seconds("POSTGRES_CONN_MAX_LIFE_SECONDS", 300),
			RunMigrations:   env.boolean("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:   env.str("POSTGRES_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     env.str("REDIS_ADDR", ""),
			Password: env.str("REDIS_PASSWORD", ""),
			DB:       env.integer("REDIS_DB", 0),
		},
		Logger: LoggerConfig{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: env.str("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:  env.str("AUTH_JWT_SECRET", devSecret),
			Issuer:     env.str("AUTH_JWT_ISSUER", "repair-desk"),
			TokenTTL:   time.Duration(env.integer("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480)) * time.Minute,
			BcryptCost: env.integer("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			Channel: env.str("NOTIFY_CHANNEL", "repair-desk:ticket-events"),
		},
		Upload: UploadConfig{
			Dir:      env.str("UPLOAD_DIR", "uploads"),
			MaxBytes: env.integer64("UPLOAD_MAX_BYTES", 10<<20),
		},
		Suggestion: SuggestionConfig{
			Endpoint:     env.str("AI_SUGGESTION_ENDPOINT", ""),
			Token:        env.str("AI_SUGGESTION_TOKEN", ""),
			Timeout:      env.seconds("AI_SUGGESTION_TIMEOUT", 20),
			Provider:     env.str("AI_SUGGESTION_PROVIDER", "generic"),
			Model:        env.str("AI_SUGGESTION_MODEL", ""),
			SystemPrompt: env.str("AI_SUGGESTION_SYSTEM_PROMPT", ""),
		},
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Upload.MaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		return errors.New("POSTGRES_MIN_CONNS exceeds POSTGRES_MAX_CONNS")
	}
	if strings.EqualFold(c.App.Env, "production") && c.Auth.JWTSecret == devSecret {
		return errors.New("AUTH_JWT_SECRET must be set in production")
	}
	return nil
}

// envReader reads typed values and collects parse failures.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func (r *envReader) integer(key string, fallback int) int {
	return int(r.integer64(key, int64(fallback)))
}

func (r *envReader) integer64(key string, fallback int64) int64 {
	val := r.str(key, "")
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) boolean(key string, fallback bool) bool {
	val := r.str(key, "")
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

// seconds reads a whole number of seconds; zero or negative disables the duration.
func (r *envReader) seconds(key string, fallback int) time.Duration {
	n := r.integer(key, fallback)
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
