package loop

import (
	"fmt"
	"strings"

	"github.com/colony-dev/colony/internal/agent"
	"github.com/colony-dev/colony/internal/project"
)

// maxContextFiles caps how many file contents are embedded in one context
// message, by recency of edit.
const maxContextFiles = 20

// maxContextFileBytes caps each embedded file so one oversized asset cannot
// crowd out the rest of the context.
const maxContextFileBytes = 8 * 1024

// buildContextMessage assembles the per-turn input for an agent: the task,
// the filtered project structure, the contents of the most recently edited
// files, any read results the agent asked for last turn, and the
// iteration-phase instruction.
func buildContextMessage(task string, store *project.Store, ag *agent.Agent, iteration int, recent []string, readResults map[string]string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Task\n\n%s\n\n", task)
	fmt.Fprintf(&b, "# Project structure\n\n%s\n\n", store.Structure())

	if len(readResults) > 0 {
		b.WriteString("# Files you asked to read\n\n")
		for path, content := range readResults {
			fmt.Fprintf(&b, "```%s\n%s\n```\n\n", pathHeader(path), content)
		}
	}

	embedded := 0
	for _, path := range recent {
		if embedded >= maxContextFiles {
			break
		}
		if _, shown := readResults[path]; shown {
			continue
		}
		content, err := store.Read(path)
		if err != nil {
			continue
		}
		if embedded == 0 {
			b.WriteString("# Current files (most recently edited first)\n\n")
		}
		text := string(content)
		if len(text) > maxContextFileBytes {
			text = text[:maxContextFileBytes] + "\n[...truncated]"
		}
		fmt.Fprintf(&b, "```%s\n%s\n```\n\n", pathHeader(path), text)
		embedded++
	}

	b.WriteString("# Your turn\n\n")
	fmt.Fprintf(&b, "You are the %s.\n", ag.Role().DisplayName())
	if iteration == 0 {
		b.WriteString("This is the first pass: create the initial files your role is responsible for.")
	} else {
		b.WriteString("Review the current state of the project and improve it: fix problems, fill gaps, and refine what exists. ")
		b.WriteString("If the project fully satisfies the task and needs nothing further from you, say so explicitly.")
	}
	return b.String()
}

// pathHeader renders the fence info line for an embedded file. The path is
// prefixed so the agent cannot mistake embedded context for a directive.
func pathHeader(path string) string {
	return "# " + path
}
