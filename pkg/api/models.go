package api

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Provider identifies an LLM backend
	Provider string

	// ModelEntry is one row of the model catalog exposed over HTTP and
	// accepted in run requests
	ModelEntry struct {
		DisplayName string   `json:"display_name"`
		ModelName   string   `json:"model_name"`
		Provider    Provider `json:"provider"`
	}
)

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderGemini    Provider = "gemini"
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
)

var ErrInvalidProvider = errors.New("invalid model provider")

var validProviders = map[Provider]struct{}{
	ProviderAnthropic: {},
	ProviderDeepSeek:  {},
	ProviderGemini:    {},
	ProviderGroq:      {},
	ProviderOpenAI:    {},
	ProviderOllama:    {},
}

// Validate checks that the provider names a known LLM backend
func (p Provider) Validate() error {
	if _, ok := validProviders[p]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidProvider, string(p))
	}
	return nil
}

// ParseProvider resolves a provider name case-insensitively, so callers
// may send display casing such as "OpenAI"
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}
