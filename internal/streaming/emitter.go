// Package streaming turns a raw token stream from the model into the
// typed event stream consumers see: visible text deltas with tool XML
// stripped out, and tool-call events emitted as soon as a complete block
// is recognised (spec.md §4.3).
package streaming

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/xonecas/symb-core/internal/events"
	"github.com/xonecas/symb-core/internal/toolparse"
)

// holdbackK is the number of trailing characters withheld from emission,
// large enough to cover the longest opening tag plus slack. When the last
// `<` lies inside that tail, holdback starts at the `<` instead.
const holdbackK = 32

// Chunk is one item of the raw token source. Err, when set, marks the end
// of the stream with a provider-level failure; Text is ignored in that case.
type Chunk struct {
	Text string
	Err  error
}

// Options configures optional side channels the emitter reports through.
type Options struct {
	// Warn receives a message whenever a second inline tool call in the
	// same response is parsed and dropped per the at-most-one-call rule.
	Warn func(msg string)
}

func (o Options) warn(msg string) {
	if o.Warn != nil {
		o.Warn(msg)
	}
}

// Run consumes chunks and emits the corresponding StreamEvent sequence.
// The returned channel is closed once the stream is fully drained,
// whether it ended in RunFinished or RunError.
func Run(ctx context.Context, chunks <-chan Chunk, opts Options) <-chan events.Event {
	out := make(chan events.Event, 16)

	go func() {
		defer close(out)
		emit := func(e events.Event) {
			select {
			case out <- e:
			case <-ctx.Done():
			}
		}

		var accumulated strings.Builder
		messageID := uuid.NewString()
		emit(events.TextMessageStart(messageID))

		emittedCleanLen := 0
		toolScanOffset := 0
		inlineToolEmitted := false
		producedToolCall := false
		truncatedAtHallucination := false

	readLoop:
		for {
			select {
			case <-ctx.Done():
				emit(events.TextMessageEnd(messageID))
				emit(events.RunError(ctx.Err().Error(), "CANCELLED"))
				return
			case chunk, ok := <-chunks:
				if !ok {
					break readLoop
				}
				if chunk.Err != nil {
					emit(events.TextMessageEnd(messageID))
					emit(events.RunError(chunk.Err.Error(), "PROVIDER_ERROR"))
					return
				}

				accumulated.WriteString(chunk.Text)
				text := accumulated.String()

				if idx := hallucinatedTurnIndex(text); idx >= 0 {
					text = text[:idx]
					accumulated.Reset()
					accumulated.WriteString(text)
					truncatedAtHallucination = true
				}

				if !inlineToolEmitted {
					normalized := toolparse.Normalize(text)

					if start, end, body, found := toolparse.FindCompleteBlock(normalized, toolScanOffset); found {
						pre := normalized[emittedCleanLen:start]
						if pre != "" {
							emit(events.TextMessageContent(messageID, pre))
						}
						emit(events.TextMessageEnd(messageID))

						if call, ok := toolparse.ParseOne(body); ok {
							callID := uuid.NewString()
							emit(events.ToolCallStart(callID, call.Name, 0))
							emit(events.ToolCallArgs(callID, argsJSON(call)))
							emit(events.ToolCallEnd(callID, call.Name, call.Input))
							producedToolCall = true
						}

						inlineToolEmitted = true
						toolScanOffset = end
						emittedCleanLen = end

						messageID = uuid.NewString()
						emit(events.TextMessageStart(messageID))

						post := normalized[end:]
						if safe := holdbackBound(post, 0); safe > 0 {
							emit(events.TextMessageContent(messageID, post[:safe]))
							emittedCleanLen = end + safe
						}
					} else {
						safe := holdbackBound(normalized, emittedCleanLen)
						if safe > emittedCleanLen {
							delta := normalized[emittedCleanLen:safe]
							if delta != "" {
								emit(events.TextMessageContent(messageID, delta))
							}
							emittedCleanLen = safe
						}
					}
				}

				if truncatedAtHallucination {
					break readLoop
				}
			}
		}

		final := toolparse.Normalize(accumulated.String())

		if !inlineToolEmitted {
			remainder := ""
			if emittedCleanLen <= len(final) {
				remainder = final[emittedCleanLen:]
			}
			result := toolparse.Parse(remainder)

			if len(result.TextParts) > 0 {
				emit(events.TextMessageContent(messageID, result.TextParts[0]))
			}
			emit(events.TextMessageEnd(messageID))

			if len(result.ToolCalls) > 0 {
				call := result.ToolCalls[0]
				callID := uuid.NewString()
				emit(events.ToolCallStart(callID, call.Name, 0))
				emit(events.ToolCallArgs(callID, argsJSON(call)))
				emit(events.ToolCallEnd(callID, call.Name, call.Input))
				producedToolCall = true

				for _, extra := range result.ToolCalls[1:] {
					opts.warn("dropping extra tool call in same response: " + extra.Name)
				}
			}

			for _, part := range result.TextParts[min(1, len(result.TextParts)):] {
				id := uuid.NewString()
				emit(events.TextMessageStart(id))
				emit(events.TextMessageContent(id, part))
				emit(events.TextMessageEnd(id))
			}
		} else {
			tail := ""
			if emittedCleanLen <= len(final) {
				tail = final[emittedCleanLen:]
			}
			for {
				start, end, _, found := toolparse.FindCompleteBlock(tail, 0)
				if !found {
					break
				}
				opts.warn("dropping extra tool call in same response")
				tail = tail[:start] + tail[end:]
			}
			if idx := strings.Index(tail, "<tool_use>"); idx >= 0 {
				tail = tail[:idx]
			}
			if tail != "" {
				emit(events.TextMessageContent(messageID, tail))
			}
			emit(events.TextMessageEnd(messageID))
		}

		reason := events.FinishStop
		if producedToolCall {
			reason = events.FinishToolCalls
		}
		emit(events.RunFinished(reason))
	}()

	return out
}

// hallucinatedTurnIndex returns the offset at which a fabricated next-turn
// marker begins, or -1 if none is present.
func hallucinatedTurnIndex(s string) int {
	best := -1
	for _, marker := range []string{"\n\nHuman:", "\n\nH:"} {
		if idx := strings.Index(s, marker); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

// holdbackBound returns the furthest offset at or after from up to which
// text may safely be emitted: len(s)-holdbackK, or the last `<` when it lies
// within holdbackK characters of the end, and never past the start of a
// <tool_use> or <function_calls> opening tag at or after from.
func holdbackBound(s string, from int) int {
	if from > len(s) {
		from = len(s)
	}
	safeEdge := len(s) - holdbackK
	if safeEdge <= from {
		return from
	}
	if idx := strings.LastIndexByte(s[from:], '<'); idx >= 0 && from+idx >= safeEdge {
		safeEdge = from + idx
	}
	for _, tag := range []string{"<tool_use>", "<function_calls>"} {
		if idx := strings.Index(s[from:], tag); idx >= 0 && from+idx < safeEdge {
			safeEdge = from + idx
		}
	}
	return safeEdge
}

func argsJSON(call toolparse.ParsedToolCall) string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for k, v := range call.Input {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(jsonQuote(k))
		b.WriteByte(':')
		b.WriteString(jsonQuote(v))
	}
	b.WriteByte('}')
	return b.String()
}

func jsonQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
