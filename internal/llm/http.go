package llm

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
)

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// ErrEndpoint is returned when the chat endpoint responds with a non-success
// status or a malformed body. Callers surface it rather than retrying.
var ErrEndpoint = errors.New("llm endpoint error")

// maxErrorBodyBytes caps how much of an error response body is included in
// error messages.
const maxErrorBodyBytes = 4 * 1024

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	// BaseURL is the endpoint root, e.g. "http://localhost:11434".
	BaseURL string

	// Model is the model identifier sent with every request.
	Model string

	// APIKey, when non-empty, is sent as a bearer token.
	APIKey string

	// Timeout is the per-request wall-clock limit. Zero means 120s.
	Timeout time.Duration
}

// HTTPClient talks to a chat-completion endpoint over HTTP. It is stateless;
// conversation history travels in each request's message list.
type HTTPClient struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a client for the given endpoint configuration.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// chatRequest is the wire shape of a chat call.
type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	Temperature float64        `json:"temperature,omitempty"`
	Stream      bool           `json:"stream"`
	Options     map[string]any `json:"options,omitempty"`
}

// chatResponse covers both flat {content} replies and Ollama-style
// {message:{content}} replies.
type chatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Chat sends the request and returns the reply. A non-2xx status or a body
// with no content yields an error wrapping ErrEndpoint that carries the
// status and a bounded excerpt of the body for diagnostics.
func (c *HTTPClient) Chat(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		Stream:      false,
		Options:     req.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEndpoint, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEndpoint, err)
	}

	content := parsed.Content
	if content == "" {
		content = parsed.Message.Content
	}
	if content == "" {
		return nil, fmt.Errorf("%w: response carried no content", ErrEndpoint)
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return &Response{Content: content, Model: model}, nil
}

// Model returns the configured model identifier.
func (c *HTTPClient) Model() string {
	return c.model
}

// IsAvailable probes the endpoint root with a short GET. Any response at all
// counts as available; the endpoint contract only guarantees /api/chat.
func (c *HTTPClient) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
