// ABOUTME: Centralized configuration for the middleware generator
// ABOUTME: Defaults, then an optional YAML file, then environment variables, then validation
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Supported completion providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default chat models per provider
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
)

// Config holds all configuration for the generator
type Config struct {
	// Language model settings
	Provider         string        `yaml:"provider" validate:"oneof=openai anthropic"`
	OpenAIKey        string        `yaml:"openai_api_key"`
	AnthropicKey     string        `yaml:"anthropic_api_key"`
	OpenAIBaseURL    string        `yaml:"openai_base_url" validate:"omitempty,url"`
	AnthropicBaseURL string        `yaml:"anthropic_base_url" validate:"omitempty,url"`
	ChatModel        string        `yaml:"chat_model"`
	EmbeddingModel   string        `yaml:"embedding_model" validate:"required"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`

	// Call guarding
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int           `yaml:"burst" validate:"min=1"`
	BreakerFailures   uint32        `yaml:"breaker_failures" validate:"min=1"`
	BreakerTimeout    time.Duration `yaml:"breaker_timeout" validate:"gt=0"`

	// Storage and retrieval
	DBPath    string `yaml:"db_path"`
	ChunkSize int    `yaml:"chunk_size" validate:"min=1"`
	TopK      int    `yaml:"top_k" validate:"min=1,max=50"`
	// IndexOnSave embeds a case's chunks right after it is saved
	IndexOnSave bool `yaml:"index_on_save"`

	// Generation
	TargetLanguage string `yaml:"target_language" validate:"required"`

	// Serving
	HTTPAddr     string   `yaml:"http_addr" validate:"required"`
	CORSOrigins  []string `yaml:"cors_origins"`
	OTLPEndpoint string   `yaml:"otlp_endpoint"`

	// Logging
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=console json"`

	// Caller-side save retries
	SaveRetries int           `yaml:"save_retries" validate:"min=0,max=10"`
	RetryDelay  time.Duration `yaml:"retry_delay" validate:"gte=0"`
}

// Default returns the built-in configuration before any file or environment is applied
func Default() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Timeout:           60 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
		BreakerFailures:   5,
		BreakerTimeout:    30 * time.Second,
		ChunkSize:         1000,
		TopK:              3,
		TargetLanguage:    "Python",
		HTTPAddr:          ":8080",
		CORSOrigins:       []string{"*"},
		LogLevel:          "info",
		LogFormat:         "console",
		SaveRetries:       3,
		RetryDelay:        500 * time.Millisecond,
	}
}

// Load builds the configuration. path may be empty, in which case MWGEN_CONFIG is consulted.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MWGEN_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel(cfg.Provider)
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.Provider = strings.ToLower(getEnv("MWGEN_PROVIDER", c.Provider))
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.AnthropicKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.AnthropicBaseURL = getEnv("ANTHROPIC_BASE_URL", c.AnthropicBaseURL)
	c.ChatModel = getEnv("MWGEN_CHAT_MODEL", c.ChatModel)
	c.EmbeddingModel = getEnv("MWGEN_EMBEDDING_MODEL", c.EmbeddingModel)
	c.Timeout = getEnvDuration("MWGEN_TIMEOUT", c.Timeout)
	c.RequestsPerSecond = getEnvFloat("MWGEN_RATE_LIMIT", c.RequestsPerSecond)
	c.Burst = getEnvInt("MWGEN_RATE_BURST", c.Burst)
	c.BreakerFailures = uint32(getEnvInt("MWGEN_BREAKER_FAILURES", int(c.BreakerFailures)))
	c.BreakerTimeout = getEnvDuration("MWGEN_BREAKER_TIMEOUT", c.BreakerTimeout)
	c.DBPath = getEnv("MWGEN_DB_PATH", c.DBPath)
	c.ChunkSize = getEnvInt("MWGEN_CHUNK_SIZE", c.ChunkSize)
	c.TopK = getEnvInt("MWGEN_TOP_K", c.TopK)
	c.IndexOnSave = getEnvBool("MWGEN_INDEX_ON_SAVE", c.IndexOnSave)
	c.TargetLanguage = getEnv("MWGEN_TARGET_LANGUAGE", c.TargetLanguage)
	c.HTTPAddr = getEnv("MWGEN_HTTP_ADDR", c.HTTPAddr)
	c.CORSOrigins = getEnvList("MWGEN_CORS_ORIGINS", c.CORSOrigins)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.LogLevel = strings.ToLower(getEnv("MWGEN_LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("MWGEN_LOG_FORMAT", c.LogFormat))
	c.SaveRetries = getEnvInt("MWGEN_SAVE_RETRIES", c.SaveRetries)
	c.RetryDelay = getEnvDuration("MWGEN_RETRY_DELAY", c.RetryDelay)
}

// DefaultChatModel returns the chat model used when none is configured
func DefaultChatModel(provider string) string {
	if provider == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultOpenAIModel
}

var validate = validator.New()

// Validate checks field constraints and reports the first few violations by field name
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.ActualTag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// RequireCompletion checks that the selected provider has credentials.
// Only commands that call a language model need this.
func (c *Config) RequireCompletion() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return errors.New("OPENAI_API_KEY is required for provider openai")
		}
	case ProviderAnthropic:
		if c.AnthropicKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required for provider anthropic")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}

// EmbeddingsAvailable reports whether an embedding backend can be constructed
func (c *Config) EmbeddingsAvailable() bool {
	return c.OpenAIKey != ""
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
