package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"framelabel/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Config captures the runtime settings required to talk to the annotation
// service.
type Config struct {
	BaseURL      string
	Model        string
	APIKey       string
	SystemPrompt string
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration
}

// Request is the ephemeral payload for one frame annotation call.
type Request struct {
	FrameID    string
	UserPrompt string
	// Images holds pre-encoded base64 JPEG payloads, possibly empty.
	Images []string
}

// Client wraps the annotation service's chat-completions endpoint with the
// retry policy and response validation the pipeline depends on.
type Client struct {
	cfg        Config
	policy     RetryPolicy
	httpClient *http.Client
	sleeper    func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how backoff waits are performed (used in tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs an annotation client from configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	client := &Client{
		cfg:        cfg,
		policy:     RetryPolicy{MaxAttempts: attempts, BaseDelay: cfg.RetryDelay},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Policy exposes the effective retry policy.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Annotate calls the service for one frame. Transport failures are retried
// per the policy with exponential backoff; a response that parses but fails
// schema validation is terminal and reported with the schema marker.
func (c *Client) Annotate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "annotator", "call", "api key required", nil)
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		return nil, services.Wrap(services.ErrValidation, "annotator", "call", "user prompt required", nil)
	}

	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		text, err := c.send(ctx, req)
		if err == nil {
			return c.parse(req.FrameID, text)
		}

		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTransient, "annotator", "call", req.FrameID, err)
		}
		if !retryable(err) {
			return nil, services.Wrap(services.ErrFatalService, "annotator", "call", req.FrameID, err)
		}
		lastErr = err
		if attempt == c.policy.MaxAttempts-1 {
			break
		}
		if err := c.sleep(ctx, c.policy.Delay(attempt)); err != nil {
			return nil, services.Wrap(services.ErrTransient, "annotator", "call", req.FrameID, err)
		}
	}

	return nil, services.Wrap(services.ErrTransient, "annotator", "call",
		fmt.Sprintf("%s: failed after %d attempts", req.FrameID, c.policy.MaxAttempts), lastErr)
}

// parse validates response content. Content problems are never retried:
// retries are reserved for transport failures.
func (c *Client) parse(frameID, text string) (*Result, error) {
	result, violations, err := ParseResult(text)
	if err != nil {
		return nil, services.Wrap(services.ErrSchema, "annotator", "parse response", frameID, err)
	}
	if len(violations) > 0 {
		return nil, services.Wrap(services.ErrSchema, "annotator", "validate response",
			fmt.Sprintf("%s: %s", frameID, strings.Join(violations, "; ")), nil)
	}
	return result, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) send(ctx context.Context, req Request) (string, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: userContent(req)},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("annotation request: encode body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("annotation request: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("annotation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("annotation request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("annotation request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", &httpStatusError{StatusCode: http.StatusBadGateway, Body: completion.Error.Message}
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("annotation request: service returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// userContent renders the user message: plain text when there are no images,
// multi-part content otherwise.
func userContent(req Request) any {
	if len(req.Images) == 0 {
		return req.UserPrompt
	}
	parts := make([]contentPart, 0, len(req.Images)+1)
	parts = append(parts, contentPart{Type: "text", Text: req.UserPrompt})
	for _, img := range req.Images {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/jpeg;base64," + img},
		})
	}
	return parts
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		return c.sleeper(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
