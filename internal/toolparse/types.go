// Package toolparse extracts <tool_use> blocks embedded in free-form model
// output, normalizes alternative invocation dialects, and repairs truncated
// JSON via jsonrepair. It never panics: anything it cannot parse is
// preserved verbatim as text.
package toolparse

// ParsedToolCall is a single tool invocation recovered from model output.
type ParsedToolCall struct {
	Name  string
	Input map[string]string
}

// ParseResult holds the text and tool calls recovered from one response,
// in source order.
type ParseResult struct {
	TextParts []string
	ToolCalls []ParsedToolCall
}
