// Package llm talks to a local Ollama runtime over its HTTP API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/okian/datacheck/pkg/logger"
	"github.com/okian/datacheck/pkg/metrics"
)

// Client defaults.
const (
	defaultHost        = "http://127.0.0.1:11434"
	defaultModel       = "gemma2:2b"
	defaultTimeout     = 120 * time.Second
	defaultRetryMax    = 2
	defaultRetryDelay  = 200 * time.Millisecond
	defaultTemperature = 0.3
	defaultMaxTokens   = 3000

	errorBodyLimit = 8 << 10
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHost sets the runtime base URL.
func WithHost(host string) Option {
	return func(c *Client) {
		if host != "" {
			c.host = host
		}
	}
}

// WithModel sets the model name passed on every request.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds a single HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetryMax sets how many attempts a request gets.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.retryMax = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// Client is a minimal non-streaming client for Ollama's /api/generate
// endpoint. Transient network failures are retried with exponential backoff
// and jitter; HTTP errors are not retried.
type Client struct {
	httpClient  *http.Client
	host        string
	model       string
	retryMax    int
	retryDelay  time.Duration
	temperature float64
	maxTokens   int
	log         logger.Logger
}

// New creates a client with configuration options.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		host:        defaultHost,
		model:       defaultModel,
		retryMax:    defaultRetryMax,
		retryDelay:  defaultRetryDelay,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		log:         logger.Named("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a prompt and returns the model's full response text. The
// context bounds the whole call including retries.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Stream: false,
		Options: map[string]any{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	text, err := c.generateWithRetry(ctx, payload)
	metrics.RecordLLMRequestLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordLLMError()
		return "", err
	}
	return text, nil
}

func (c *Client) generateWithRetry(ctx context.Context, payload []byte) (string, error) {
	endpoint := c.host + "/api/generate"
	backoff := c.retryDelay

	var lastErr error
	for attempt := 1; attempt <= c.retryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < c.retryMax {
				lastErr = err
				c.log.Warn(ctx, "retrying llm request",
					logger.Int("attempt", attempt),
					logger.Error(err))
				sleepWithContext(ctx, withJitter(backoff))
				backoff *= 2
				continue
			}
			return "", &UnreachableError{Host: c.host, Err: err}
		}

		text, err := decodeGenerate(resp)
		if err != nil {
			lastErr = err
			break
		}
		return text, nil
	}
	return "", lastErr
}

func decodeGenerate(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var raw map[string]any
		if json.Unmarshal(body, &raw) == nil {
			if msg, ok := raw["error"].(string); ok {
				apiErr.Message = msg
			}
		}
		return "", apiErr
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Response == "" {
		return "", ErrEmptyResponse
	}
	return out.Response, nil
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
