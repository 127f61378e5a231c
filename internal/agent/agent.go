// Package agent provides role-specialized chat agents. An Agent owns its
// conversation history exclusively; the history grows monotonically and is
// mutated only by Step, in insertion order.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/colony-dev/colony/internal/llm"
)

// ErrLLM wraps chat-endpoint failures so callers can classify agent errors
// without inspecting transport details.
var ErrLLM = errors.New("agent llm error")

// Agent is one role-specialized participant in a workflow. It carries its
// role's system prompt and temperature, and the full message history of the
// session. Agents are not safe for concurrent Step calls; the controller
// serializes turns.
type Agent struct {
	role    Role
	name    string
	client  llm.Client
	temp    float64
	history []llm.Message
}

// New creates an agent for the given role backed by the given client. An
// empty name defaults to the role's display name. A temperature override
// from configuration may be supplied via WithTemperature.
func New(role Role, name string, client llm.Client) *Agent {
	if name == "" {
		name = role.DisplayName()
	}
	return &Agent{
		role:   role,
		name:   name,
		client: client,
		temp:   role.Temperature(),
		history: []llm.Message{
			{Role: "system", Content: role.SystemPrompt()},
		},
	}
}

// WithTemperature overrides the role's default sampling temperature.
// Returns the agent for chaining during construction.
func (a *Agent) WithTemperature(t float64) *Agent {
	a.temp = t
	return a
}

// Role returns the agent's role.
func (a *Agent) Role() Role { return a.role }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Temperature returns the agent's effective sampling temperature.
func (a *Agent) Temperature() float64 { return a.temp }

// History returns a copy of the message history, system prompt included.
func (a *Agent) History() []llm.Message {
	out := make([]llm.Message, len(a.history))
	copy(out, a.history)
	return out
}

// Step appends input to the history, sends the whole history to the chat
// endpoint at the agent's temperature, appends the reply, and returns it.
// On endpoint failure the input is kept in the history (the agent did hear
// the question) but no assistant message is appended, and the returned error
// wraps ErrLLM.
func (a *Agent) Step(ctx context.Context, input string) (string, error) {
	a.history = append(a.history, llm.Message{Role: "user", Content: input})

	resp, err := a.client.Chat(ctx, llm.Request{
		Messages:    a.History(),
		Temperature: a.temp,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLLM, a.name, err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: %s: empty reply", ErrLLM, a.name)
	}

	a.history = append(a.history, llm.Message{Role: "assistant", Content: reply})
	return reply, nil
}
