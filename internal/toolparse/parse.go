package toolparse

import (
	"encoding/json"
	"strings"

	"github.com/xonecas/symb-core/internal/jsonrepair"
)

const (
	openTag  = "<tool_use>"
	closeTag = "</tool_use>"
)

// Parse extracts tool calls and surrounding text from output. It never
// panics: any internal failure folds into returning whatever text/calls
// were collected so far, plus the untouched remainder as a final text part.
func Parse(output string) (result ParseResult) {
	var textParts []string
	var calls []ParsedToolCall
	normalized := output
	lastEmittedEnd := 0

	defer func() {
		if r := recover(); r != nil {
			if lastEmittedEnd <= len(normalized) && normalized[lastEmittedEnd:] != "" {
				textParts = append(textParts, normalized[lastEmittedEnd:])
			}
			result = ParseResult{TextParts: textParts, ToolCalls: calls}
		}
	}()

	normalized = normalize(output)
	searchFrom := 0

	emitText := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			textParts = append(textParts, s)
		}
	}

	for {
		idx := strings.Index(normalized[searchFrom:], openTag)
		if idx < 0 {
			break
		}
		tagStart := searchFrom + idx
		emitText(normalized[lastEmittedEnd:tagStart])

		bodyStart := tagStart + len(openTag)
		closeIdx := strings.Index(normalized[bodyStart:], closeTag)

		if closeIdx < 0 {
			// Truncated at end of stream: treat the remainder as the body.
			body := normalized[bodyStart:]
			if call, ok := parseBody(body); ok {
				calls = append(calls, call)
			} else {
				emitText(normalized[tagStart:])
			}
			lastEmittedEnd = len(normalized)
			searchFrom = len(normalized)
			break
		}

		bodyEnd := bodyStart + closeIdx
		body := normalized[bodyStart:bodyEnd]
		blockEnd := bodyEnd + len(closeTag)

		if call, ok := parseBody(body); ok {
			calls = append(calls, call)
		} else {
			emitText(normalized[tagStart:blockEnd])
		}

		lastEmittedEnd = blockEnd
		searchFrom = blockEnd
	}

	emitText(normalized[lastEmittedEnd:])

	return ParseResult{TextParts: textParts, ToolCalls: calls}
}

// parseBody parses the JSON payload of one tool_use block, repairing
// truncated/malformed JSON, and builds a ParsedToolCall. ok is false when
// the body cannot be salvaged into a call with a non-empty name.
func parseBody(body string) (ParsedToolCall, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ParsedToolCall{}, false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		repaired, ok := jsonrepair.Repair(trimmed)
		if !ok {
			return ParsedToolCall{}, false
		}
		if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
			return ParsedToolCall{}, false
		}
	}

	name := extractName(obj)
	if name == "" {
		return ParsedToolCall{}, false
	}

	return ParsedToolCall{Name: name, Input: extractInput(obj)}, true
}

func extractName(obj map[string]json.RawMessage) string {
	raw, ok := obj["name"]
	if !ok {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}

// extractInput applies the three fallbacks from spec.md §4.2: (a) a nested
// "input" object, (b) all top-level keys except name/input, (c) empty.
// Non-string values are re-serialized to strings for the executor's
// untyped map[string]string interface.
func extractInput(obj map[string]json.RawMessage) map[string]string {
	if raw, ok := obj["input"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			return toStringMap(nested)
		}
	}

	fallback := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		if k == "name" || k == "input" {
			continue
		}
		fallback[k] = v
	}
	return toStringMap(fallback)
}

func toStringMap(m map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(m))
	for k, raw := range m {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out[k] = s
			continue
		}
		// Numbers, booleans, objects, arrays: re-serialize losslessly.
		out[k] = strings.TrimSpace(string(raw))
	}
	return out
}
