package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hedgeline/engine/internal/config"
	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/log"
)

type (
	// Chatter produces a completion for a conversation
	Chatter interface {
		Chat(ctx context.Context, provider api.Provider, model string,
			messages []api.Message) (string, error)
	}

	// Client speaks the OpenAI-compatible chat completions wire format
	// used by Groq, OpenAI, DeepSeek, and Ollama
	Client struct {
		httpClient *http.Client
		cfg        *config.Config

		// BaseURL overrides provider endpoint resolution when set, for
		// proxies and self-hosted gateways
		BaseURL string
	}

	chatRequest struct {
		Model       string        `json:"model"`
		Messages    []api.Message `json:"messages"`
		Temperature float64       `json:"temperature"`
		MaxTokens   int           `json:"max_tokens"`
		TopP        float64       `json:"top_p"`
	}
)

const (
	groqBaseURL     = "https://api.groq.com/openai/v1"
	openAIBaseURL   = "https://api.openai.com/v1"
	deepSeekBaseURL = "https://api.deepseek.com/v1"

	chatCompletionsPath = "/chat/completions"

	// Sampling settings shared by every analyst call. Signal generation
	// wants mostly deterministic output with bounded length.
	chatTemperature = 0.5
	chatMaxTokens   = 1024
	chatTopP        = 0.5
)

var (
	ErrProviderUnsupported = errors.New("provider not supported")
	ErrMissingAPIKey       = errors.New("no API key configured")
	ErrHTTPError           = errors.New("chat completion returned HTTP error")
	ErrNoChoices           = errors.New("no response choices received")
)

var _ Chatter = (*Client)(nil)

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.LLMTimeout,
		},
		cfg: cfg,
	}
}

// Chat sends a conversation to the provider and returns the content of
// the first response choice
func (c *Client) Chat(
	ctx context.Context, provider api.Provider, model string,
	messages []api.Message,
) (string, error) {
	endpoint, key, err := c.resolve(provider)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(&chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
		TopP:        chatTopP,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)
	if err != nil {
		slog.Error("Chat completion request failed",
			log.Provider(provider),
			log.Model(model),
			slog.Duration("duration", dur),
			log.Error(err))
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Chat completion HTTP error",
			log.Provider(provider),
			log.Model(model),
			slog.Int("status_code", resp.StatusCode))
		return "", fmt.Errorf("%w: HTTP %d", ErrHTTPError, resp.StatusCode)
	}

	content := gjson.GetBytes(respBody, "choices.0.message.content")
	if !content.Exists() {
		return "", ErrNoChoices
	}

	slog.Debug("Chat completion succeeded",
		log.Provider(provider),
		log.Model(model),
		slog.Duration("duration", dur))
	return content.String(), nil
}

func (c *Client) resolve(p api.Provider) (string, string, error) {
	key, ok := c.cfg.ProviderKey(p)

	var base string
	switch p {
	case api.ProviderGroq:
		base = groqBaseURL
	case api.ProviderOpenAI:
		base = openAIBaseURL
	case api.ProviderDeepSeek:
		base = deepSeekBaseURL
	case api.ProviderOllama:
		base = strings.TrimSuffix(c.cfg.OllamaBaseURL, "/") + "/v1"
	default:
		return "", "", fmt.Errorf("%w: %s", ErrProviderUnsupported, p)
	}

	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrMissingAPIKey, p)
	}
	if c.BaseURL != "" {
		base = strings.TrimSuffix(c.BaseURL, "/")
	}
	return base + chatCompletionsPath, key, nil
}
