// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest):
//  1. Environment variables (STASH_*, DATABASE_URL, GEMINI_API_KEY)
//  2. Config file (~/.stash/config.yaml, or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - AI: model and embedder selection
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: similarity threshold, result cap, token budget
//   - RateLimit: rolling-window request cap
//   - Server: address, CORS, proxy trust
//
// Sensitive values (postgres password) are masked in MarshalJSON/String.
// Validation is fail-fast with sentinel errors checkable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidMatchCount indicates the retrieval result cap is out of range.
	ErrInvalidMatchCount = errors.New("invalid match count")

	// ErrInvalidTokenBudget indicates the context token budget is out of range.
	ErrInvalidTokenBudget = errors.New("invalid token budget")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")
)

// Defaults shared with the retrieval and rate-limit layers.
const (
	// DefaultModelName is the default generation model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default embedding model.
	// Output is truncated to embedding.Dimension (384) via
	// OutputDimensionality so vectors match the pgvector column.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// post to count as evidence.
	DefaultSimilarityThreshold = 0.7

	// DefaultMatchCount caps embedding-mode retrieval results.
	DefaultMatchCount = 10

	// DefaultContextTokens is the evidence token budget per request.
	DefaultContextTokens = 4000

	// DefaultRateLimit is the rolling-window request cap.
	DefaultRateLimit = 20

	// DefaultRateWindow is the rolling-window duration.
	DefaultRateWindow = time.Hour
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON().
type Config struct {
	// AI models
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Retrieval
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	MatchCount          int     `mapstructure:"match_count" json:"match_count"`
	ContextTokens       int     `mapstructure:"context_tokens" json:"context_tokens"`

	// Rate limiting (rolling window, advisory)
	RateLimit     int `mapstructure:"rate_limit" json:"rate_limit"`
	RateWindowSec int `mapstructure:"rate_window_sec" json:"rate_window_sec"`

	// Streaming hardening: maximum model-stream duration in seconds.
	// 0 disables the watchdog.
	StreamTimeoutSec int `mapstructure:"stream_timeout_sec" json:"stream_timeout_sec"`

	// Storage (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server (serve mode only)
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".stash")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	repairRateLimit(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("match_count", DefaultMatchCount)
	v.SetDefault("context_tokens", DefaultContextTokens)

	v.SetDefault("rate_limit", DefaultRateLimit)
	v.SetDefault("rate_window_sec", int(DefaultRateWindow/time.Second))
	v.SetDefault("stream_timeout_sec", 0)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "stash")
	v.SetDefault("postgres_password", "stash_dev_password")
	v.SetDefault("postgres_db_name", "stash")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("addr", "127.0.0.1:8090")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly in app.Setup, not via viper; its
// absence is reported per request by the orchestrator so offline
// commands (import, migrate, search) keep working without it.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "STASH_MODEL_NAME")
	mustBind("embedder_model", "STASH_EMBEDDER_MODEL")
	mustBind("rate_limit", "STASH_RATE_LIMIT")
	mustBind("stream_timeout_sec", "STASH_STREAM_TIMEOUT_SEC")
	mustBind("addr", "STASH_ADDR")
	mustBind("cors_origins", "STASH_CORS_ORIGINS")
	mustBind("trust_proxy", "STASH_TRUST_PROXY")
}

// repairRateLimit pre-validates the rate-limit override before the
// struct decode. The cap is advisory, so a value that does not parse
// as an integer falls back to the default instead of aborting Load;
// normalize() handles out-of-range integers that survive decoding.
func repairRateLimit(v *viper.Viper) {
	raw := strings.TrimSpace(v.GetString("rate_limit"))
	if _, err := strconv.Atoi(raw); err != nil {
		slog.Debug("unparseable rate_limit, using default",
			"value", raw, "default", DefaultRateLimit)
		v.Set("rate_limit", DefaultRateLimit)
	}
}

// normalize repairs recoverable misconfiguration instead of failing.
// The rate-limit cap is advisory; a bad override silently falls back to
// the default rather than blocking startup.
func (c *Config) normalize() {
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateWindowSec <= 0 {
		c.RateWindowSec = int(DefaultRateWindow / time.Second)
	}
	if c.StreamTimeoutSec < 0 {
		c.StreamTimeoutSec = 0
	}
}

// RateWindow returns the rolling-window duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSec) * time.Second
}

// StreamTimeout returns the model-stream watchdog duration (0 = disabled).
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSec) * time.Second
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 chars or
// fewer are fully masked to prevent substring matching; longer ones keep
// the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
