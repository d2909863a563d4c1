// Package executor is the outbound tool-execution boundary spec.md §6 calls
// out as deliberately external to the core: "the filesystem tool
// implementations themselves ... are out of scope; only interfaces are
// defined." It is grounded in internal/mcp/types.go's Error{Code,Message}
// shape and internal/mcptools's handler-per-tool layout, adapted into a
// small in-process registry so C10 can be exercised without a live MCP
// server.
package executor

import (
	"context"
	"fmt"

	"github.com/xonecas/symb-core/internal/events"
)

// Code is the tool-error taxonomy named in spec.md §6.
type Code string

const (
	CodeInvalidPath  Code = "INVALID_PATH"
	CodeFileNotFound Code = "FILE_NOT_FOUND"
	CodeFileNotRead  Code = "FILE_NOT_READ"
	CodeNoMatch      Code = "NO_MATCH"
	CodeNotAllowed   Code = "NOT_ALLOWED"
	CodeInvalidRegex Code = "INVALID_REGEX"
	CodeMissingInput Code = "MISSING_INPUT"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// ToolError is the typed error a Handler raises instead of a plain error
// when the failure has a taxonomy code the loop and C8 should record.
type ToolError struct {
	Code    Code
	Message string
}

func (e *ToolError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Result is a tool's successful outcome. Output carries the textual (or
// structured, via Metadata) payload fed back to the model as the tool
// message; Title is an optional short label for display.
type Result struct {
	Output   string
	Metadata map[string]any
	Title    string
}

// UserQuestionTool is the distinguished tool name whose successful return
// ends the agent loop's iteration (spec.md §4.7).
const UserQuestionTool = "user_question"

// MutationAction classifies a file_changed custom event's effect, matching
// the set spec.md names.
type MutationAction string

const (
	ActionCreate MutationAction = "create"
	ActionEdit   MutationAction = "edit"
	ActionDelete MutationAction = "delete"
	ActionMove   MutationAction = "move"
)

// Handler executes one tool call. It may push Custom events (e.g.
// file_changed) via emit before returning; the loop drains those between
// tool calls (spec.md §4.8's ordering guarantee). IsMutation reports
// whether a failure of this tool should flag the divergence detector's
// mutation-failure ring (C5).
type Handler interface {
	Name() string
	Description() string
	Parameters() map[string]any
	IsMutation() bool
	Execute(ctx context.Context, input map[string]string, emit func(events.Event)) (Result, error)
}

// Registry maps tool names to handlers, the executor's single entry point
// from C10's perspective.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) {
	if _, exists := r.handlers[h.Name()]; !exists {
		r.order = append(r.order, h.Name())
	}
	r.handlers[h.Name()] = h
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// IsMutation reports whether the named tool is a mutation tool, false for
// unknown names.
func (r *Registry) IsMutation(name string) bool {
	h, ok := r.handlers[name]
	return ok && h.IsMutation()
}

// Execute runs the named tool, or returns a NOT_ALLOWED ToolError when the
// name has no registered handler (spec.md §6's "tool execution error" path
// — the loop still feeds this back to the model as the tool result).
func (r *Registry) Execute(ctx context.Context, name string, input map[string]string, emit func(events.Event)) (Result, error) {
	h, ok := r.handlers[name]
	if !ok {
		return Result{}, &ToolError{Code: CodeNotAllowed, Message: fmt.Sprintf("unknown tool %q", name)}
	}
	return h.Execute(ctx, input, emit)
}

// Descriptors renders the registered tools in stable registration order,
// for the system-prompt tool-description block (spec.md §4.5).
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		h := r.handlers[name]
		out = append(out, Descriptor{Name: h.Name(), Description: h.Description(), Parameters: h.Parameters()})
	}
	return out
}

// Descriptor is the model-facing sketch of a registered tool.
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}
