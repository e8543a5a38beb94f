// Package openai implements the semantic classification capability against
// any OpenAI-compatible chat completions endpoint.
//
// Nodes never know which model they are using. Routing is centralised here:
// each task maps to a model tier, cheap models for classification and
// extraction, a stronger model for multi-document synthesis and audit work.
// Temperature and seed are pinned so identical inputs yield identical
// outputs; nodes replay classification calls when a suspended run resumes.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/policypal/palgraph/internal/logging"
	"github.com/policypal/palgraph/pkg/observability"
	"github.com/policypal/palgraph/pkg/ports"
)

// ModelPrice is USD per million tokens, split by direction.
type ModelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string        // defaults to https://api.openai.com/v1
	Timeout time.Duration // per-request; defaults to 30s

	// TaskModels routes each classification task to a model. Missing tasks
	// are an error at call time, not at construction.
	TaskModels map[string]string

	// Prices is the per-model cost table for usage accounting. Models absent
	// from the table report zero cost.
	Prices map[string]ModelPrice
}

// DefaultTaskModels returns the standard routing table.
func DefaultTaskModels() map[string]string {
	return map[string]string{
		ports.TaskIntent:        "gpt-4o-mini",
		ports.TaskDocResolution: "gpt-4o-mini",
		ports.TaskQueryRewrite:  "gpt-4o-mini",
		ports.TaskSummarize:     "gpt-4o-mini",
		ports.TaskInquire:       "gpt-4o-mini",
		ports.TaskCompare:       "gpt-4o",
		ports.TaskAudit:         "gpt-4o",
	}
}

// DefaultPrices returns the published per-token rates for the default models.
func DefaultPrices() map[string]ModelPrice {
	return map[string]ModelPrice{
		"gpt-4o":      {InputPerMTok: 5.00, OutputPerMTok: 15.00},
		"gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	}
}

// Client implements ports.Classifier.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Client. A nil logger defaults to no-op.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TaskModels == nil {
		cfg.TaskModels = DefaultTaskModels()
	}
	if cfg.Prices == nil {
		cfg.Prices = DefaultPrices()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []ports.ChatMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	Seed           int                 `json:"seed"`
	ResponseFormat map[string]string   `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// rateLimitError marks an HTTP 429 so the retry loop can recognise it.
type rateLimitError struct{ body string }

func (e *rateLimitError) Error() string {
	return "rate limit exceeded (429): " + e.body
}

// Classify calls the model routed for task and decodes the JSON object it
// returns into out. Retries once on rate limit (after 1s) and once on
// timeout; every other failure surfaces immediately.
func (c *Client) Classify(ctx context.Context, task string, messages []ports.ChatMessage, out any) (ports.Usage, error) {
	if c.cfg.APIKey == "" {
		return ports.Usage{}, errors.New("classifier API key not configured")
	}
	model, ok := c.cfg.TaskModels[task]
	if !ok {
		return ports.Usage{}, fmt.Errorf("no model routed for task %q", task)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			var rle *rateLimitError
			if errors.As(lastErr, &rle) {
				c.logger.Warn("rate limit hit, retrying", "task", task)
				select {
				case <-ctx.Done():
					return ports.Usage{}, ctx.Err()
				case <-time.After(1 * time.Second):
				}
			} else {
				c.logger.Warn("timeout, retrying", "task", task)
			}
			observability.ObserveClassifierCall(task, "retry", 0, 0)
		}

		usage, err := c.call(ctx, task, model, messages, out)
		if err == nil {
			observability.ObserveClassifierCall(task, "success", usage.Tokens, usage.CostUSD)
			return usage, nil
		}
		if !retryable(err) {
			observability.ObserveClassifierCall(task, "error", 0, 0)
			return ports.Usage{}, err
		}
		lastErr = err
	}

	observability.ObserveClassifierCall(task, "error", 0, 0)
	return ports.Usage{}, fmt.Errorf("classification failed after 2 attempts (task=%s): %w", task, lastErr)
}

func retryable(err error) bool {
	var rle *rateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) call(ctx context.Context, task, model string, messages []ports.ChatMessage, out any) (ports.Usage, error) {
	start := time.Now()

	reqBody := chatRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    0,
		Seed:           0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return ports.Usage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return ports.Usage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.Usage{}, fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.Usage{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return ports.Usage{}, &rateLimitError{body: msg}
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return ports.Usage{}, fmt.Errorf("classification API error (%d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return ports.Usage{}, fmt.Errorf("classification request failed with status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return ports.Usage{}, errors.New("classification response had no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if err := decodeStructured(content, out); err != nil {
		return ports.Usage{}, fmt.Errorf("structured output parsing failed for %s: %w", task, err)
	}

	usage := ports.Usage{
		Tokens:  parsed.Usage.TotalTokens,
		CostUSD: c.cost(model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens),
	}

	c.logger.Info("classifier call",
		"task", task,
		"model", model,
		"tokens", usage.Tokens,
		"cost_usd", usage.CostUSD,
		"duration", time.Since(start),
	)
	return usage, nil
}

func (c *Client) cost(model string, input, output int) float64 {
	price, ok := c.cfg.Prices[model]
	if !ok {
		return 0
	}
	return float64(input)*price.InputPerMTok/1e6 + float64(output)*price.OutputPerMTok/1e6
}

// decodeStructured parses the model's JSON object into out. Some models wrap
// JSON in markdown fences despite json_object mode, so fences are stripped
// first. Decoding goes through mapstructure in weak mode to tolerate numbers
// arriving as strings.
func decodeStructured(content string, out any) error {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
