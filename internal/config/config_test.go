// ABOUTME: Tests for centralized configuration system
// ABOUTME: Verifies defaults, YAML layering, environment overrides, and validation
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"MWGEN_CONFIG", "MWGEN_PROVIDER", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	"OPENAI_BASE_URL", "ANTHROPIC_BASE_URL", "MWGEN_CHAT_MODEL", "MWGEN_EMBEDDING_MODEL",
	"MWGEN_TIMEOUT", "MWGEN_RATE_LIMIT", "MWGEN_RATE_BURST", "MWGEN_BREAKER_FAILURES",
	"MWGEN_BREAKER_TIMEOUT", "MWGEN_DB_PATH", "MWGEN_CHUNK_SIZE", "MWGEN_TOP_K",
	"MWGEN_INDEX_ON_SAVE", "MWGEN_TARGET_LANGUAGE", "MWGEN_HTTP_ADDR", "MWGEN_CORS_ORIGINS",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "MWGEN_LOG_LEVEL", "MWGEN_LOG_FORMAT",
	"MWGEN_SAVE_RETRIES", "MWGEN_RETRY_DELAY",
}

// clearConfigEnv blanks every variable Load reads; getEnv treats "" as unset
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Provider != ProviderOpenAI {
		t.Errorf("Provider = %s, want openai", cfg.Provider)
	}
	if cfg.ChatModel != DefaultOpenAIModel {
		t.Errorf("ChatModel = %s, want %s", cfg.ChatModel, DefaultOpenAIModel)
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel = %s, want text-embedding-3-small", cfg.EmbeddingModel)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Timeout)
	}
	if cfg.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want 1000", cfg.ChunkSize)
	}
	if cfg.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.TopK)
	}
	if cfg.TargetLanguage != "Python" {
		t.Errorf("TargetLanguage = %s, want Python", cfg.TargetLanguage)
	}
	if cfg.IndexOnSave {
		t.Error("IndexOnSave = true, want false")
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %s, want console", cfg.LogFormat)
	}
}

func TestLoad_AnthropicDefaultModel(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MWGEN_PROVIDER", "Anthropic")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("Provider = %s, want anthropic", cfg.Provider)
	}
	if cfg.ChatModel != DefaultAnthropicModel {
		t.Errorf("ChatModel = %s, want %s", cfg.ChatModel, DefaultAnthropicModel)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "mwgen.yaml")
	yamlDoc := `
provider: openai
chat_model: gpt-4o
timeout: 15s
chunk_size: 200
top_k: 5
target_language: Go
cors_origins:
  - https://example.com
log_level: debug
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("MWGEN_TOP_K", "7")
	t.Setenv("MWGEN_INDEX_ON_SAVE", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ChatModel != "gpt-4o" {
		t.Errorf("ChatModel = %s, want gpt-4o", cfg.ChatModel)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
	if cfg.ChunkSize != 200 {
		t.Errorf("ChunkSize = %d, want 200", cfg.ChunkSize)
	}
	if cfg.TopK != 7 {
		t.Errorf("TopK = %d, want 7 (env overrides file)", cfg.TopK)
	}
	if cfg.TargetLanguage != "Go" {
		t.Errorf("TargetLanguage = %s, want Go", cfg.TargetLanguage)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if !cfg.IndexOnSave {
		t.Error("IndexOnSave = false, want true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "mwgen.yaml")
	if err := os.WriteFile(path, []byte("target_language: Rust\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("MWGEN_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.TargetLanguage != "Rust" {
		t.Errorf("TargetLanguage = %s, want Rust", cfg.TargetLanguage)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearConfigEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for a missing config file")
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MWGEN_PROVIDER", "cohere")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() should fail for unknown provider")
	}
	if !strings.Contains(err.Error(), "Provider") {
		t.Errorf("error = %v, want mention of Provider", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, true},
		{"top k too large", func(c *Config) { c.TopK = 100 }, true},
		{"zero rate", func(c *Config) { c.RequestsPerSecond = 0 }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"bad base url", func(c *Config) { c.OpenAIBaseURL = "not a url" }, true},
		{"good base url", func(c *Config) { c.OpenAIBaseURL = "http://localhost:11434/v1" }, false},
		{"too many save retries", func(c *Config) { c.SaveRetries = 11 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequireCompletion(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireCompletion(); err == nil {
		t.Error("RequireCompletion() should fail without OpenAI key")
	}
	cfg.OpenAIKey = "sk-test"
	if err := cfg.RequireCompletion(); err != nil {
		t.Errorf("RequireCompletion() error = %v", err)
	}

	cfg.Provider = ProviderAnthropic
	if err := cfg.RequireCompletion(); err == nil {
		t.Error("RequireCompletion() should fail without Anthropic key")
	}
	cfg.AnthropicKey = "ak-test"
	if err := cfg.RequireCompletion(); err != nil {
		t.Errorf("RequireCompletion() error = %v", err)
	}
	if !cfg.EmbeddingsAvailable() {
		t.Error("EmbeddingsAvailable() = false with OpenAI key set")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		defaultVal bool
		want       bool
	}{
		{"empty uses default true", "", true, true},
		{"empty uses default false", "", false, false},
		{"true", "true", false, true},
		{"1", "1", false, true},
		{"false", "false", true, false},
		{"0", "0", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			got := getEnvBool("TEST_BOOL", tt.defaultVal)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ")
	got := getEnvList("TEST_LIST", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("getEnvList() = %v, want [a b]", got)
	}
}
