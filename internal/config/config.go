package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendGitHub = "github"
	BackendMinIO  = "minio"
)

// Pin collection backends accepted by PINS_BACKEND.
const (
	PinsPostgres = "postgres"
	PinsMemory   = "memory"
)

// defaultAllowedOrigins is the browser allow-list used when RELAY_ALLOWED_ORIGINS is unset.
var defaultAllowedOrigins = []string{
	"https://nohairblingbling.github.io",
	"https://yuzhuojia.fun",
	"https://www.yuzhuojia.fun",
	"http://localhost:5173",
	"http://localhost:5174",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:5174",
}

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	URL                string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// GitHubConfig holds the content host coordinates. The token never leaves the relay.
type GitHubConfig struct {
	Token   string
	Repo    string
	Branch  string
	APIURL  string
	RawURL  string
	Timeout time.Duration
}

// RelayConfig configures the upload relay endpoint.
type RelayConfig struct {
	AllowedOrigins []string
	Backend        string
	RateLimit      int
	RateWindow     time.Duration
	BodyLimitMB    int
	DefaultMessage string
}

// UploadConfig configures the upload client used by pinctl.
type UploadConfig struct {
	RelayURL  string
	Origin    string
	ImagePath string
	Timeout   time.Duration
	Repo      string
	Branch    string
	RawURL    string
}

// PinsConfig selects where the pin collection lives.
type PinsConfig struct {
	Backend       string
	NotifyChannel string
}

// TracingConfig mirrors the standard OTEL_* variables the relay honours.
type TracingConfig struct {
	Disabled    bool
	ServiceName string
	Protocol    string
	Endpoint    string
	Sampler     string
	SamplerArg  string
}

// SessionConfig signs the tokens handed out on login. An empty Secret
// disables tokens.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port     string
	Timezone string
	Database DatabaseConfig
	MinIO    MinIOConfig
	GitHub   GitHubConfig
	Relay    RelayConfig
	Upload   UploadConfig
	Pins     PinsConfig
	Session  SessionConfig
	Tracing  TracingConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	repo := getEnv("GITHUB_REPO", "tracker-xydr/worldweb")
	branch := getEnv("GITHUB_BRANCH", "main")
	rawURL := strings.TrimRight(getEnv("RAW_CONTENT_URL", "https://raw.githubusercontent.com"), "/")

	return &AppConfig{
		Port:     getEnv("PORT", "8080"),
		Timezone: getEnv("TZ", "UTC"),
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			PublicURL: strings.TrimRight(getEnv("MINIO_PUBLIC_URL", ""), "/"),
		},
		GitHub: GitHubConfig{
			Token:   getEnv("GITHUB_TOKEN", ""),
			Repo:    repo,
			Branch:  branch,
			APIURL:  strings.TrimRight(getEnv("GITHUB_API_URL", "https://api.github.com"), "/"),
			RawURL:  rawURL,
			Timeout: getEnvDuration("GITHUB_TIMEOUT_SEC", 55*time.Second),
		},
		Relay: RelayConfig{
			AllowedOrigins: getEnvList("RELAY_ALLOWED_ORIGINS", defaultAllowedOrigins),
			Backend:        getEnv("STORAGE_BACKEND", BackendGitHub),
			RateLimit:      getEnvInt("RELAY_RATE_LIMIT", 30),
			RateWindow:     getEnvDuration("RELAY_RATE_WINDOW_SEC", time.Minute),
			BodyLimitMB:    getEnvInt("RELAY_BODY_LIMIT_MB", 25),
			DefaultMessage: getEnv("RELAY_DEFAULT_MESSAGE", "upload via PinWorld"),
		},
		Upload: UploadConfig{
			RelayURL:  getEnv("UPLOAD_RELAY_URL", "http://localhost:8080/"),
			Origin:    getEnv("UPLOAD_ORIGIN", "http://localhost:5173"),
			ImagePath: strings.Trim(getEnv("UPLOAD_IMAGE_PATH", "uploads/images"), "/"),
			Timeout:   getEnvDuration("UPLOAD_TIMEOUT_SEC", 60*time.Second),
			Repo:      repo,
			Branch:    branch,
			RawURL:    rawURL,
		},
		Pins: PinsConfig{
			Backend:       getEnv("PINS_BACKEND", PinsPostgres),
			NotifyChannel: getEnv("PINS_NOTIFY_CHANNEL", "pins_changed"),
		},
		Tracing: TracingConfig{
			Disabled:    getEnvBool("OTEL_SDK_DISABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", ""),
			Protocol:    getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
			Sampler:     getEnv("OTEL_TRACES_SAMPLER", "parentbased_traceidratio"),
			SamplerArg:  getEnv("OTEL_TRACES_SAMPLER_ARG", "1.0"),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
			TTL:    getEnvDuration("SESSION_TTL_SEC", 7*24*time.Hour),
		},
	}
}

// ErrMissingCredential reports that the relay cannot reach its content host.
var ErrMissingCredential = errors.New("content host credential is not configured")

// Validate checks the relay settings at startup so a missing credential is an
// operator error reported before the first request rather than on it.
func (c *AppConfig) Validate() error {
	if len(c.Relay.AllowedOrigins) == 0 {
		return fmt.Errorf("RELAY_ALLOWED_ORIGINS must list at least one origin")
	}
	if c.Relay.RateLimit <= 0 {
		return fmt.Errorf("RELAY_RATE_LIMIT must be positive, got %d", c.Relay.RateLimit)
	}
	switch c.Relay.Backend {
	case BackendGitHub:
		if c.GitHub.Token == "" {
			return fmt.Errorf("GITHUB_TOKEN: %w", ErrMissingCredential)
		}
		if c.GitHub.Repo == "" || c.GitHub.Branch == "" {
			return fmt.Errorf("GITHUB_REPO and GITHUB_BRANCH are required")
		}
	case BackendMinIO:
		if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY/MINIO_SECRET_KEY: %w", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Relay.Backend)
	}
	return nil
}

// Location resolves the configured timezone used for log timestamps.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil && i > 0 {
			return time.Duration(i) * time.Second
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
