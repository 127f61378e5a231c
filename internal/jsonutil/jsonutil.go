// Package jsonutil extracts JSON from the freeform text that language models
// produce. Model replies routinely wrap JSON in markdown code fences, prefix
// it with prose, or embed ANSI escape codes; the extraction strategies here
// tolerate all of that.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// maxInputBytes is the maximum input size processed. Larger inputs are
// rejected to prevent memory exhaustion on runaway model output.
const maxInputBytes = 10 * 1024 * 1024 // 10 MB

// reANSI matches ANSI escape codes (CSI sequences) that may be embedded in
// model or tool output. They are stripped before extraction.
var reANSI = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHF]`)

// reCodeFence matches a markdown code fence that optionally carries a "json"
// language tag (or no tag). The fenced content is captured in subgroup 1.
// (?s) enables dot-all so .*? matches newlines; the non-greedy quantifier
// stops at the first closing fence, allowing multiple fences per text.
var reCodeFence = regexp.MustCompile("(?s)```(?:json)?[ \\t]*\n(.*?)\n```")

// sanitize strips ANSI escape codes and a leading UTF-8 BOM, then enforces
// the size cap.
func sanitize(text string) (string, error) {
	if len(text) > maxInputBytes {
		return "", fmt.Errorf("jsonutil: input exceeds maximum size of %d bytes", maxInputBytes)
	}
	text = strings.TrimPrefix(text, "\xef\xbb\xbf")
	text = reANSI.ReplaceAllString(text, "")
	return text, nil
}

// Extract returns the first valid JSON object found in text. Strategies are
// tried in order of reliability:
//  1. Markdown code fence (```json or ```)
//  2. Brace matching for top-level { } structures
//
// An error is returned when no valid JSON is found or the input exceeds the
// size cap.
func Extract(text string) (json.RawMessage, error) {
	text, err := sanitize(text)
	if err != nil {
		return nil, err
	}

	for _, loc := range reCodeFence.FindAllStringSubmatchIndex(text, -1) {
		if len(loc) < 4 {
			continue
		}
		inner := strings.TrimSpace(text[loc[2]:loc[3]])
		if inner != "" && json.Valid([]byte(inner)) {
			return json.RawMessage(inner), nil
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchingBrace(text, i)
		if end < 0 {
			continue
		}
		candidate := text[i : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
		// Skip past the failed candidate rather than re-scanning its interior.
		i = end
	}

	return nil, fmt.Errorf("jsonutil: no valid JSON found in text")
}

// ExtractInto extracts the first valid JSON value from text and unmarshals
// it into target.
func ExtractInto(text string, target interface{}) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("jsonutil: unmarshal failed: %w", err)
	}
	return nil
}

// matchingBrace returns the index of the '}' that closes the '{' at position
// start, or -1 when no matching brace exists. Handles nested braces, quoted
// strings, and escape sequences.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch ch {
			case '\\':
				i++ // escape sequence: skip the next character
			case '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
