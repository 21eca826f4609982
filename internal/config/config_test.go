package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("GITHUB_REPO", "acme/images")
	t.Setenv("RELAY_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("UPLOAD_TIMEOUT_SEC", "5")
	t.Setenv("GITHUB_BRANCH", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("DATABASE_URL", "postgres://neon/pins")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "acme/images", cfg.GitHub.Repo)
	assert.Equal(t, "acme/images", cfg.Upload.Repo)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, "main", cfg.GitHub.Branch)
	assert.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, "postgres://neon/pins", cfg.Database.URL)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RELAY_ALLOWED_ORIGINS", "")
	t.Setenv("UPLOAD_TIMEOUT_SEC", "")
	t.Setenv("UPLOAD_IMAGE_PATH", "")
	t.Setenv("RAW_CONTENT_URL", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("SESSION_TTL_SEC", "")

	cfg := Load()

	assert.Equal(t, defaultAllowedOrigins, cfg.Relay.AllowedOrigins)
	assert.Equal(t, 60*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, "uploads/images", cfg.Upload.ImagePath)
	assert.Equal(t, "https://raw.githubusercontent.com", cfg.Upload.RawURL)
	assert.Equal(t, BackendGitHub, cfg.Relay.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		return &AppConfig{
			GitHub: GitHubConfig{Token: "secret", Repo: "a/b", Branch: "main"},
			Relay:  RelayConfig{AllowedOrigins: []string{"https://a.example"}, Backend: BackendGitHub, RateLimit: 10},
		}
	}

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := valid()
		cfg.GitHub.Token = ""
		err := cfg.Validate()
		assert.True(t, errors.Is(err, ErrMissingCredential))
	})

	t.Run("missing minio keys", func(t *testing.T) {
		cfg := valid()
		cfg.Relay.Backend = BackendMinIO
		assert.ErrorIs(t, cfg.Validate(), ErrMissingCredential)
	})

	t.Run("empty allow-list", func(t *testing.T) {
		cfg := valid()
		cfg.Relay.AllowedOrigins = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := valid()
		cfg.Relay.Backend = "ftp"
		assert.Error(t, cfg.Validate())
	})
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	t.Setenv(key, "value")

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	t.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	t.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	t.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	t.Setenv(key, "")
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	t.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	t.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	t.Setenv(key, "")
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_DURATION_VAR"

	t.Setenv(key, "30")
	assert.Equal(t, 30*time.Second, getEnvDuration(key, time.Minute))

	t.Setenv(key, "-1")
	assert.Equal(t, time.Minute, getEnvDuration(key, time.Minute))
}
