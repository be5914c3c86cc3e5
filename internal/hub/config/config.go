package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile            = ".env"
	defaultHTTPAddr           = ":8080"
	defaultEnvironment        = "local"
	defaultIdentityTimeout    = 10 * time.Second
	defaultLoginRetryAttempts = 3
	defaultLoginRetryInitial  = 250 * time.Millisecond
	defaultSessionIdleTimeout = 2 * time.Hour
	defaultSessionLifetime    = 7 * 24 * time.Hour
	defaultDraftTTL           = time.Hour
	defaultSubmissionDelay    = time.Second
	defaultReadTimeout        = 10 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 60 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Identity   IdentityConfig
	Session    SessionConfig
	Drafts     DraftConfig
	Firebase   FirebaseConfig
	Submission SubmissionConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address      string
	Environment  string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// IdentityConfig points at the external identity service.
type IdentityConfig struct {
	BaseURL            string
	Timeout            time.Duration
	LoginRetryAttempts int
	LoginRetryInitial  time.Duration
}

// SessionConfig controls the encrypted visitor session cookie.
type SessionConfig struct {
	HashKey      string
	BlockKey     string
	CookieSecure bool
	IdleTimeout  time.Duration
	Lifetime     time.Duration
}

// DraftConfig selects where in-progress form state lives between requests.
type DraftConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// FirebaseConfig enables token verification and Firestore-backed bookings.
type FirebaseConfig struct {
	ProjectID          string
	FirestoreProjectID string
}

// SubmissionConfig tunes the stub submission flows.
type SubmissionConfig struct {
	Delay time.Duration
}

// Production reports whether the deployment runs with production hardening.
func (c Config) Production() bool {
	switch strings.ToLower(c.Server.Environment) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Address:      stringWithDefault(lookup, "HUB_HTTP_ADDR", portAddress(lookup)),
			Environment:  strings.ToLower(stringWithDefault(lookup, "HUB_ENV", defaultEnvironment)),
			BaseURL:      strings.TrimRight(stringWithDefault(lookup, "HUB_BASE_URL", ""), "/"),
			ReadTimeout:  durationWithDefault(lookup, "HUB_HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "HUB_HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "HUB_HTTP_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Identity: IdentityConfig{
			BaseURL:            strings.TrimRight(stringWithDefault(lookup, "HUB_IDENTITY_BASE_URL", ""), "/"),
			Timeout:            durationWithDefault(lookup, "HUB_IDENTITY_TIMEOUT", defaultIdentityTimeout),
			LoginRetryAttempts: intWithDefault(lookup, "HUB_LOGIN_RETRY_ATTEMPTS", defaultLoginRetryAttempts),
			LoginRetryInitial:  durationWithDefault(lookup, "HUB_LOGIN_RETRY_INITIAL", defaultLoginRetryInitial),
		},
		Session: SessionConfig{
			HashKey:      stringWithDefault(lookup, "HUB_SESSION_HASH_KEY", ""),
			BlockKey:     stringWithDefault(lookup, "HUB_SESSION_BLOCK_KEY", ""),
			CookieSecure: boolWithDefault(lookup, "HUB_SESSION_COOKIE_SECURE", false),
			IdleTimeout:  durationWithDefault(lookup, "HUB_SESSION_IDLE_TIMEOUT", defaultSessionIdleTimeout),
			Lifetime:     durationWithDefault(lookup, "HUB_SESSION_LIFETIME", defaultSessionLifetime),
		},
		Drafts: DraftConfig{
			RedisAddr:     stringWithDefault(lookup, "HUB_REDIS_ADDR", ""),
			RedisPassword: stringWithDefault(lookup, "HUB_REDIS_PASSWORD", ""),
			RedisDB:       intWithDefault(lookup, "HUB_REDIS_DB", 0),
			TTL:           durationWithDefault(lookup, "HUB_DRAFT_TTL", defaultDraftTTL),
		},
		Firebase: FirebaseConfig{
			ProjectID:          stringWithDefault(lookup, "HUB_FIREBASE_PROJECT_ID", ""),
			FirestoreProjectID: stringWithDefault(lookup, "HUB_FIRESTORE_PROJECT_ID", ""),
		},
		Submission: SubmissionConfig{
			Delay: durationWithDefault(lookup, "HUB_SUBMISSION_DELAY", defaultSubmissionDelay),
		},
	}

	// Firestore project defaults to Firebase project when unspecified.
	if cfg.Firebase.FirestoreProjectID == "" {
		cfg.Firebase.FirestoreProjectID = cfg.Firebase.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Server.Address) == "" {
		missing = append(missing, "Server.Address")
	}
	if cfg.Identity.Timeout <= 0 {
		missing = append(missing, "Identity.Timeout")
	}
	if cfg.Identity.LoginRetryAttempts < 1 {
		missing = append(missing, "Identity.LoginRetryAttempts")
	}
	if cfg.Session.IdleTimeout <= 0 {
		missing = append(missing, "Session.IdleTimeout")
	}
	if cfg.Session.Lifetime <= 0 {
		missing = append(missing, "Session.Lifetime")
	}
	if cfg.Drafts.TTL <= 0 {
		missing = append(missing, "Drafts.TTL")
	}
	if cfg.Submission.Delay < 0 {
		missing = append(missing, "Submission.Delay")
	}
	if cfg.Production() {
		// Ephemeral keys would log every visitor out on each deploy.
		if len(cfg.Session.HashKey) < 32 {
			missing = append(missing, "Session.HashKey")
		}
		if cfg.Identity.BaseURL == "" {
			missing = append(missing, "Identity.BaseURL")
		}
	}
	if n := len(cfg.Session.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		missing = append(missing, "Session.BlockKey")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// portAddress honours Cloud Run's PORT when HUB_HTTP_ADDR is unset.
func portAddress(lookup func(string) (string, bool)) string {
	if port, ok := lookup("PORT"); ok && strings.TrimSpace(port) != "" {
		return ":" + strings.TrimSpace(port)
	}
	return defaultHTTPAddr
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
