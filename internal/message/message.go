// Package message defines the conversation data model shared by the
// context manager, agent loop, and provider adapter (spec.md §3).
package message

// Role discriminates the Message tagged variant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Part is one piece of a user message's ordered content when it is not a
// plain string (e.g. text interleaved with image references).
type Part struct {
	Type  string // "text" | "image"
	Text  string
	Image string // opaque reference (URL or data URI), provider-defined
}

// ToolCallRecord is the verbatim record of one tool call the model emitted,
// re-encoded into the prompt on subsequent turns.
type ToolCallRecord struct {
	ID            string
	Name          string
	ArgumentsJSON string
}

// Message is the tagged {user|assistant|tool} variant of spec.md §3. Only
// the fields relevant to Role are populated.
type Message struct {
	Role Role

	// user
	Text                string
	Parts               []Part
	MutationFailureTag  bool

	// assistant
	AssistantText string
	ToolCalls     []ToolCallRecord

	// tool
	ToolCallID string
	Result     string
}

// User builds a plain-text user message.
func User(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// UserParts builds a multi-part user message.
func UserParts(parts []Part) Message {
	return Message{Role: RoleUser, Parts: parts}
}

// Assistant builds an assistant message carrying text and/or tool calls.
func Assistant(text string, calls []ToolCallRecord) Message {
	return Message{Role: RoleAssistant, AssistantText: text, ToolCalls: calls}
}

// Tool builds a tool-result message referencing the originating call.
func Tool(toolCallID, result string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Result: result}
}

// TextContent returns every textual field of the message, used by the
// context manager for token estimation across the whole history.
func (m Message) TextContent() []string {
	switch m.Role {
	case RoleUser:
		out := []string{m.Text}
		for _, p := range m.Parts {
			out = append(out, p.Text)
		}
		return out
	case RoleAssistant:
		out := []string{m.AssistantText}
		for _, c := range m.ToolCalls {
			out = append(out, c.ArgumentsJSON)
		}
		return out
	case RoleTool:
		return []string{m.Result}
	default:
		return nil
	}
}
