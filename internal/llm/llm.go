// Package llm defines the chat-completion client contract and its HTTP
// implementation. The endpoint accepts {model, messages, temperature,
// options} and returns {content}; anything that speaks that shape (an
// Ollama-compatible server, a local proxy, a test double) can drive Colony.
package llm

import "context"

// Message is a single message in a conversation.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // the message content
}

// Request is a chat-completion request.
type Request struct {
	Messages    []Message      `json:"messages"`
	Temperature float64        `json:"temperature,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// Response is a chat-completion reply.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Client is the interface for chat-completion providers.
type Client interface {
	// Chat sends a request and returns the model's reply.
	Chat(ctx context.Context, req Request) (*Response, error)

	// Model returns the model name this client targets.
	Model() string

	// IsAvailable reports whether the endpoint is reachable and responding.
	IsAvailable(ctx context.Context) bool
}
