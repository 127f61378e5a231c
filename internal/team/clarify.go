package team

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/colony-dev/colony/internal/llm"
)

// Clarified pairs a rewritten task with the original text.
type Clarified struct {
	Clarified string
	Original  string
}

const clarifierSystem = `You rewrite brief software task descriptions into structured
requirements documents. Reply with exactly these sections:

## Goal
## Requirements
## Specifications
## Success Criteria

Stay faithful to the request; do not invent features the user did not ask for.`

// Clarify rewrites a brief task description into a structured requirements
// document. It never fails: when the model call errors or returns nothing,
// the original text is used as-is and a warning is logged.
func Clarify(ctx context.Context, client llm.Client, raw string, logger *log.Logger) Clarified {
	out := Clarified{Clarified: raw, Original: raw}

	resp, err := client.Chat(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: clarifierSystem},
			{Role: "user", Content: fmt.Sprintf("Rewrite this task:\n\n%s", raw)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		logger.Warn("task clarification failed, using original text", "error", err)
		return out
	}

	clarified := strings.TrimSpace(resp.Content)
	if clarified == "" {
		logger.Warn("task clarification returned empty text, using original")
		return out
	}

	out.Clarified = clarified
	return out
}
