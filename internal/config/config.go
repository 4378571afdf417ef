package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hedgeline/engine/pkg/api"
)

type (
	// Config holds configuration settings for the engine service
	Config struct {
		// API Server
		APIHost     string
		APIPort     int
		LogLevel    string
		Environment string

		// Market data
		FinancialAPIKey string

		// LLM providers
		GroqAPIKey      string
		OpenAIAPIKey    string
		AnthropicAPIKey string
		DeepSeekAPIKey  string
		GeminiAPIKey    string
		OllamaBaseURL   string

		// Stores
		RedisURL    string
		SnapshotURL string

		// Analysts
		AnalystsFile string

		// Timeouts
		HTTPTimeout     time.Duration
		LLMTimeout      time.Duration
		ShutdownTimeout time.Duration
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultHTTPTimeout     = 30 * time.Second
	DefaultLLMTimeout      = 2 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
	MaxTimeoutSeconds      = 60 * 60 // 1 hour

	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultEnvironment   = "development"
)

var (
	ErrInvalidAPIPort     = errors.New("invalid API port")
	ErrInvalidHTTPTimeout = errors.New("http timeout must be positive")
	ErrInvalidLLMTimeout  = errors.New("llm timeout must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// server, timeouts, and provider endpoints
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:         DefaultAPIHost,
		APIPort:         DefaultAPIPort,
		LogLevel:        "info",
		Environment:     DefaultEnvironment,
		OllamaBaseURL:   DefaultOllamaBaseURL,
		HTTPTimeout:     DefaultHTTPTimeout,
		LLMTimeout:      DefaultLLMTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from HEDGELINE_* environment
// variables. Returns an error if any value cannot be parsed.
func (c *Config) LoadFromEnv() error {
	loadEnvString("HEDGELINE_API_HOST", &c.APIHost)
	loadEnvString("HEDGELINE_LOG_LEVEL", &c.LogLevel)
	loadEnvString("HEDGELINE_ENVIRONMENT", &c.Environment)
	loadEnvString("HEDGELINE_OLLAMA_BASE_URL", &c.OllamaBaseURL)
	loadEnvString("HEDGELINE_REDIS_URL", &c.RedisURL)
	loadEnvString("HEDGELINE_SNAPSHOT_URL", &c.SnapshotURL)
	loadEnvString("HEDGELINE_ANALYSTS_FILE", &c.AnalystsFile)

	loadEnvString("FINANCIAL_DATASETS_API_KEY", &c.FinancialAPIKey)
	loadEnvString("GROQ_API_KEY", &c.GroqAPIKey)
	loadEnvString("OPENAI_API_KEY", &c.OpenAIAPIKey)
	loadEnvString("ANTHROPIC_API_KEY", &c.AnthropicAPIKey)
	loadEnvString("DEEPSEEK_API_KEY", &c.DeepSeekAPIKey)
	loadEnvString("GEMINI_API_KEY", &c.GeminiAPIKey)

	if err := loadEnvInt(
		"HEDGELINE_API_PORT", &c.APIPort, 0, MaxTCPPort,
	); err != nil {
		return err
	}
	if err := loadEnvSeconds(
		"HEDGELINE_HTTP_TIMEOUT", &c.HTTPTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvSeconds(
		"HEDGELINE_LLM_TIMEOUT", &c.LLMTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvSeconds(
		"HEDGELINE_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout,
	); err != nil {
		return err
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.HTTPTimeout <= 0 {
		return ErrInvalidHTTPTimeout
	}
	if c.LLMTimeout <= 0 {
		return ErrInvalidLLMTimeout
	}
	return nil
}

// ProviderKey returns the API key configured for the given LLM provider.
// Ollama needs no key, so it always reports ok.
func (c *Config) ProviderKey(p api.Provider) (string, bool) {
	switch p {
	case api.ProviderGroq:
		return c.GroqAPIKey, c.GroqAPIKey != ""
	case api.ProviderOpenAI:
		return c.OpenAIAPIKey, c.OpenAIAPIKey != ""
	case api.ProviderAnthropic:
		return c.AnthropicAPIKey, c.AnthropicAPIKey != ""
	case api.ProviderDeepSeek:
		return c.DeepSeekAPIKey, c.DeepSeekAPIKey != ""
	case api.ProviderGemini:
		return c.GeminiAPIKey, c.GeminiAPIKey != ""
	case api.ProviderOllama:
		return "", true
	default:
		return "", false
	}
}

func loadEnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadEnvSeconds reads key from the environment as a whole number of
// seconds and sets *dst to the equivalent duration
func loadEnvSeconds(key string, dst *time.Duration) error {
	var secs int64
	if err := loadEnvInt(key, &secs, 0, MaxTimeoutSeconds); err != nil {
		return err
	}
	if secs > 0 {
		*dst = time.Duration(secs) * time.Second
	}
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
