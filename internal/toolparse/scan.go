package toolparse

import "strings"

// Normalize rewrites Dialect A/B <function_calls> blocks into canonical
// <tool_use>{json}</tool_use> form. Exported for the streaming emitter
// (C3), which must normalize incrementally as tokens arrive.
func Normalize(s string) string {
	return normalize(s)
}

// FindCompleteBlock locates the first complete <tool_use>...</tool_use>
// block at or after offset from. It returns the block's start and end
// offsets (end is exclusive, past the closing tag) and its inner body.
func FindCompleteBlock(s string, from int) (start, end int, body string, ok bool) {
	if from > len(s) {
		from = len(s)
	}
	idx := strings.Index(s[from:], openTag)
	if idx < 0 {
		return 0, 0, "", false
	}
	tagStart := from + idx
	bodyStart := tagStart + len(openTag)
	closeIdx := strings.Index(s[bodyStart:], closeTag)
	if closeIdx < 0 {
		return 0, 0, "", false
	}
	bodyEnd := bodyStart + closeIdx
	blockEnd := bodyEnd + len(closeTag)
	return tagStart, blockEnd, s[bodyStart:bodyEnd], true
}

// ParseOne parses a single tool_use body (used by the streaming emitter
// once it has located a complete block). It is the same repair/extraction
// logic Parse uses internally.
func ParseOne(body string) (ParsedToolCall, bool) {
	return parseBody(body)
}
