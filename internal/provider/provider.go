// Package provider defines the inbound adapter contract the transport
// layer must satisfy (spec.md §6): given a conversation and a set of
// system prompts, return a stream of raw text chunks. The core never
// declares native tool schemas to the provider — tool invocation travels
// as in-band <tool_use> XML per spec.md's Non-goals — so only text
// content is extracted from whatever wire format the provider speaks.
package provider

import (
	"context"
	"errors"

	"github.com/xonecas/symb-core/internal/message"
	"github.com/xonecas/symb-core/internal/streaming"
)

// ErrProviderNotFound is returned when a requested provider name has no
// registered factory.
var ErrProviderNotFound = errors.New("provider not found")

// ToolDescriptor is the model-facing sketch of one available tool, used
// only to render the tool-description block appended to the system
// prompt (spec.md §4.10) — never sent as a native tool schema.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Provider streams raw text chunks for one model call.
type Provider interface {
	Name() string
	Stream(ctx context.Context, messages []message.Message, systemPrompts []string, tools []ToolDescriptor, maxTokens int) (<-chan streaming.Chunk, error)
}

// Options holds provider generation settings.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// Factory constructs a Provider by name.
type Factory interface {
	Name() string
	Create(opts Options) (Provider, error)
}

// Registry holds available provider factories, selected by config at
// startup (spec.md §6's provider adapter is deliberately pluggable).
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

func (r *Registry) Create(name string, opts Options) (Provider, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return f.Create(opts)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
