// internal/providers/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"community-scout/internal/common/logger"
)

var (
	ErrModelTimeout = errors.New("MODEL_TIMEOUT")
	ErrModelFailed  = errors.New("MODEL_CALL_FAILED")
)

// Generator is the single-shot completion boundary. Implementations return
// raw model text which may contain a JSON value wrapped in code fences.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

type Client struct {
	config Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		// No client timeout; per-call deadlines come from the context.
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"component": "genai-client",
		}),
	}
}

func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	requestBody := map[string]interface{}{
		"model":       model,
		"prompt":      prompt,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/generate", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return "", ErrModelTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrModelFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrModelFailed, resp.StatusCode)
	}

	var apiResponse struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrModelFailed, err)
	}

	c.logger.Debug("model call completed", map[string]interface{}{
		"model":     model,
		"elapsedMs": time.Since(start).Milliseconds(),
	})

	return apiResponse.Text, nil
}

// StripCodeFences removes markdown code-fence wrapping (``` or ```json)
// from model output so the remainder can be parsed as JSON.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence line, if any.
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || !strings.ContainsAny(first, "{[") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
