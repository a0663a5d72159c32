// Package llm implements a fail-soft chat client against an
// Ollama-compatible HTTP endpoint for the /api/chat route.
package llm

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
)

// Config holds the Ollama endpoint and model name.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// DefaultConfig matches the reference implementation's fixed endpoint.
func DefaultConfig() Config {
	return Config{
		URL:     "http://localhost:11434/api/generate",
		Model:   "phi3",
		Timeout: 60 * time.Second,
	}
}

// Client is a minimal Ollama HTTP client.
type Client struct {
	cfg    Config
	client *http.Client
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends prompt to the configured model and returns its response.
// Fail-soft: any network error, non-200 status, or decode failure returns
// an empty string.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	body, err := json.Marshal(generateRequest{Model: c.cfg.Model, Prompt: prompt, Stream: false})
	if err != nil {
		logging.Warn().Err(err).Msg("failed to marshal llm request")
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		logging.Warn().Err(err).Msg("failed to build llm request")
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		logging.Warn().Err(err).Msg("llm request failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Warn().Int("status", resp.StatusCode).Msg("llm endpoint returned non-200 status")
		return ""
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logging.Warn().Err(err).Msg("failed to decode llm response")
		return ""
	}

	return parsed.Response
}
