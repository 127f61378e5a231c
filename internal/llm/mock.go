package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Compile-time check that MockClient implements Client.
var _ Client = (*MockClient)(nil)

// ErrScriptExhausted is returned by a scripted MockClient once every queued
// reply has been consumed and no ChatFunc is set.
var ErrScriptExhausted = errors.New("mock client script exhausted")

// MockClient is a configurable Client for tests. Replies can be scripted as
// a queue, keyed by substring match on the last user message, or produced by
// a custom function. All requests are recorded in order.
type MockClient struct {
	// ModelName is the value returned by Model(). Defaults to "mock".
	ModelName string

	// ChatFunc, when set, handles every Chat call.
	ChatFunc func(ctx context.Context, req Request) (*Response, error)

	// Available is returned by IsAvailable.
	Available bool

	mu      sync.Mutex
	queue   []scripted
	keyed   []keyedReply
	Calls   []Request
	callIdx int
}

type scripted struct {
	content string
	err     error
}

type keyedReply struct {
	substr  string
	content string
}

// NewMockClient creates a MockClient that reports itself available.
func NewMockClient() *MockClient {
	return &MockClient{ModelName: "mock", Available: true}
}

// Enqueue appends a reply to the scripted queue. Queued replies are consumed
// in order, before keyed replies are consulted.
func (m *MockClient) Enqueue(content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{content: content})
	return m
}

// EnqueueError appends an error to the scripted queue.
func (m *MockClient) EnqueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{err: err})
	return m
}

// Reply registers a reply returned whenever the last user message contains
// substr. Registrations are checked in order; the first match wins.
func (m *MockClient) Reply(substr, content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyed = append(m.keyed, keyedReply{substr: substr, content: content})
	return m
}

// Chat records the request and produces a reply per the configured script.
func (m *MockClient) Chat(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn := m.ChatFunc
	if fn != nil {
		m.mu.Unlock()
		return fn(ctx, req)
	}
	defer m.mu.Unlock()

	if m.callIdx < len(m.queue) {
		s := m.queue[m.callIdx]
		m.callIdx++
		if s.err != nil {
			return nil, s.err
		}
		return &Response{Content: s.content, Model: m.Model()}, nil
	}

	last := lastUserMessage(req.Messages)
	for _, k := range m.keyed {
		if strings.Contains(last, k.substr) {
			return &Response{Content: k.content, Model: m.Model()}, nil
		}
	}

	return nil, ErrScriptExhausted
}

// Model returns the configured model name.
func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// IsAvailable returns the configured availability.
func (m *MockClient) IsAvailable(ctx context.Context) bool {
	return m.Available
}

func lastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}
