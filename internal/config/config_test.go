package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AI_SUGGESTION_ENDPOINT", "")
	t.Setenv("AI_SUGGESTION_TIMEOUT", "")
	t.Setenv("AI_SUGGESTION_PROVIDER", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout)
	assert.Equal(t, "generic", cfg.Suggestion.Provider)
	assert.Empty(t, cfg.Suggestion.Endpoint)
	assert.Equal(t, 20*time.Second, cfg.Suggestion.Timeout)
	assert.Equal(t, "migrations", cfg.Postgres.MigrationsDir)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
}

func TestLoad_SuggestionOverrides(t *testing.T) {
	t.Setenv("AI_SUGGESTION_ENDPOINT", "https://ai.example.test/v1")
	t.Setenv("AI_SUGGESTION_TOKEN", "secret")
	t.Setenv("AI_SUGGESTION_TIMEOUT", "5")
	t.Setenv("AI_SUGGESTION_PROVIDER", "openai")
	t.Setenv("AI_SUGGESTION_MODEL", "gpt-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://ai.example.test/v1", cfg.Suggestion.Endpoint)
	assert.Equal(t, "secret", cfg.Suggestion.Token)
	assert.Equal(t, 5*time.Second, cfg.Suggestion.Timeout)
	assert.Equal(t, "openai", cfg.Suggestion.Provider)
	assert.Equal(t, "gpt-test", cfg.Suggestion.Model)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"redis db", map[string]string{"REDIS_DB": "nope"}, "REDIS_DB"},
		{"upload size", map[string]string{"UPLOAD_MAX_BYTES": "0"}, "UPLOAD_MAX_BYTES"},
		{"migrations flag", map[string]string{"POSTGRES_RUN_MIGRATIONS": "maybe"}, "POSTGRES_RUN_MIGRATIONS"},
		{"pool sizes", map[string]string{"POSTGRES_MIN_CONNS": "20", "POSTGRES_MAX_CONNS": "5"}, "POSTGRES_MIN_CONNS"},
		{"production secret", map[string]string{"APP_ENV": "production", "AUTH_JWT_SECRET": ""}, "AUTH_JWT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_CollectsAllParseErrors(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	t.Setenv("AUTH_BCRYPT_COST", "y")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
	assert.Contains(t, err.Error(), "AUTH_BCRYPT_COST")
}

func TestAppConfig_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:9000", AppConfig{Host: "127.0.0.1", Port: "9000"}.Addr())
	assert.Equal(t, "[::1]:9000", AppConfig{Host: "::1", Port: "9000"}.Addr())
}
