package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_ChatFlatResponse(t *testing.T) {
	t.Parallel()
	var gotReq struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
		Stream   bool      `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]string{"content": "hello there", "model": "test-model"})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "test-model", resp.Model)

	assert.Equal(t, "test-model", gotReq.Model)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 1)
}

func TestHTTPClient_ChatOllamaResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"content": "nested reply"},
		})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "nested reply", resp.Content)
	// Response carried no model field; the configured model fills in.
	assert.Equal(t, "m", resp.Model)
}

func TestHTTPClient_ChatErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEndpoint)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestHTTPClient_ChatEmptyContent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"model": "m"})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEndpoint)
	assert.Contains(t, err.Error(), "no content")
}

func TestHTTPClient_APIKeyHeader(t *testing.T) {
	t.Parallel()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"content": "ok"})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL, Model: "m", APIKey: "sk-test"})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestHTTPClient_IsAvailable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	assert.True(t, c.IsAvailable(context.Background()))

	srv.Close()
	assert.False(t, c.IsAvailable(context.Background()))
}

func TestNewHTTPClient_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewHTTPClient(HTTPClientConfig{Model: "m"})
	assert.Error(t, err)

	_, err = NewHTTPClient(HTTPClientConfig{BaseURL: "http://localhost:11434"})
	assert.Error(t, err)
}

func TestMockClient_Script(t *testing.T) {
	t.Parallel()
	m := NewMockClient().Enqueue("first").Enqueue("second")

	resp, err := m.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "a"}}})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	resp, err = m.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "b"}}})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	_, err = m.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "c"}}})
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Len(t, m.Calls, 3)
}

func TestMockClient_KeyedReplies(t *testing.T) {
	t.Parallel()
	m := NewMockClient().
		Reply("review", "approved").
		Reply("implement", "```filename: a.py\nx\n```")

	resp, err := m.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "please review this file"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Content)

	resp, err = m.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "implement the feature"}},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "filename: a.py")
}
