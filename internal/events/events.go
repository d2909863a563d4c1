// Package events defines the typed stream of events the agent loop emits
// to downstream consumers (spec.md §3, §6).
package events

// Kind discriminates the StreamEvent variant.
type Kind int

const (
	KindRunStarted Kind = iota
	KindTextMessageStart
	KindTextMessageContent
	KindTextMessageEnd
	KindToolCallStart
	KindToolCallArgs
	KindToolCallEnd
	KindCustom
	KindRunError
	KindRunFinished
)

// FinishReason is the terminal reason carried by a RunFinished event.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
)

// Event is a single item in the outbound stream. Only the fields relevant
// to Kind are populated; the rest are zero.
type Event struct {
	Kind Kind

	// RunStarted
	RunID string
	Model string

	// TextMessage*
	MessageID string
	Delta     string

	// ToolCall*
	CallID string
	Name   string
	Index  int
	Input  map[string]string // ToolCallEnd only

	// Custom
	CustomName string
	CustomData map[string]any

	// RunError
	Message string
	Code    string

	// RunFinished
	FinishReason FinishReason
}

func RunStarted(runID, model string) Event {
	return Event{Kind: KindRunStarted, RunID: runID, Model: model}
}

func TextMessageStart(messageID string) Event {
	return Event{Kind: KindTextMessageStart, MessageID: messageID}
}

func TextMessageContent(messageID, delta string) Event {
	return Event{Kind: KindTextMessageContent, MessageID: messageID, Delta: delta}
}

func TextMessageEnd(messageID string) Event {
	return Event{Kind: KindTextMessageEnd, MessageID: messageID}
}

func ToolCallStart(callID, name string, index int) Event {
	return Event{Kind: KindToolCallStart, CallID: callID, Name: name, Index: index}
}

func ToolCallArgs(callID, delta string) Event {
	return Event{Kind: KindToolCallArgs, CallID: callID, Delta: delta}
}

func ToolCallEnd(callID, name string, input map[string]string) Event {
	return Event{Kind: KindToolCallEnd, CallID: callID, Name: name, Input: input}
}

func Custom(name string, data map[string]any) Event {
	return Event{Kind: KindCustom, CustomName: name, CustomData: data}
}

func RunError(message, code string) Event {
	return Event{Kind: KindRunError, Message: message, Code: code}
}

func RunFinished(reason FinishReason) Event {
	return Event{Kind: KindRunFinished, FinishReason: reason}
}
