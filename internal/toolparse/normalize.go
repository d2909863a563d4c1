package toolparse

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	functionCallsRe = regexp.MustCompile(`(?s)<function_calls>(.*?)</function_calls>`)
	invokeRe        = regexp.MustCompile(`(?s)<invoke(?:\s+name="([^"]*)")?\s*>(.*?)</invoke>`)
	parameterRe     = regexp.MustCompile(`(?s)<parameter\s+name="([^"]*)">(.*?)</parameter>`)
)

// normalize rewrites Dialect A and Dialect B <function_calls> blocks into
// the canonical <tool_use>{json}</tool_use> form described in spec.md §4.2.
// Input with neither dialect present is returned unchanged.
func normalize(s string) string {
	if !strings.Contains(s, "<function_calls>") {
		return s
	}
	return functionCallsRe.ReplaceAllStringFunc(s, func(block string) string {
		m := functionCallsRe.FindStringSubmatch(block)
		if m == nil {
			return block
		}
		inner := m[1]
		invokes := invokeRe.FindAllStringSubmatch(inner, -1)
		if len(invokes) == 0 {
			return block
		}
		var out strings.Builder
		for _, inv := range invokes {
			nameAttr := inv[1]
			body := inv[2]
			rewritten, ok := rewriteInvoke(nameAttr, body)
			if !ok {
				continue
			}
			out.WriteString("<tool_use>\n")
			out.WriteString(rewritten)
			out.WriteString("\n</tool_use>")
		}
		if out.Len() == 0 {
			return block
		}
		return out.String()
	})
}

// rewriteInvoke converts one <invoke> body into a canonical tool_use JSON
// payload. nameAttr is non-empty for Dialect B (name="X" on <invoke>).
func rewriteInvoke(nameAttr, body string) (string, bool) {
	params := parameterRe.FindAllStringSubmatch(body, -1)

	if nameAttr != "" {
		// Dialect B: every <parameter> is a key/value pair in input.
		input := make(map[string]any, len(params))
		for _, p := range params {
			input[p[1]] = strings.TrimSpace(p[2])
		}
		payload := map[string]any{"name": nameAttr, "input": input}
		data, err := json.Marshal(payload)
		if err != nil {
			return "", false
		}
		return string(data), true
	}

	// Dialect A: <parameter name="name">X</parameter> and
	// <parameter name="input">Y</parameter> where Y is raw JSON.
	var name, inputJSON string
	var haveName, haveInput bool
	for _, p := range params {
		switch p[1] {
		case "name":
			name = strings.TrimSpace(p[2])
			haveName = true
		case "input":
			inputJSON = strings.TrimSpace(p[2])
			haveInput = true
		}
	}
	if !haveName || name == "" {
		return "", false
	}
	nameJSON, err := json.Marshal(name)
	if err != nil {
		return "", false
	}
	if !haveInput || inputJSON == "" {
		inputJSON = "{}"
	}
	return `{"name": ` + string(nameJSON) + `, "input": ` + inputJSON + `}`, true
}
