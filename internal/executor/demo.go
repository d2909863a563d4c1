package executor

import (
	"context"

	"github.com/xonecas/symb-core/internal/events"
)

// UserQuestion is the distinguished tool demoed against cmd/symb-core: its
// only job is to surface the question text back to the model/caller and
// let the loop see the turn end.
type UserQuestion struct{}

func (UserQuestion) Name() string        { return UserQuestionTool }
func (UserQuestion) Description() string { return "Ask the user a clarifying question and stop." }
func (UserQuestion) Parameters() map[string]any {
	return map[string]any{"question": "string"}
}
func (UserQuestion) IsMutation() bool { return false }

func (UserQuestion) Execute(ctx context.Context, input map[string]string, emit func(events.Event)) (Result, error) {
	return Result{Output: input["question"]}, nil
}

// Noop is a read-only placeholder tool used to exercise the executor
// boundary in tests and the demo CLI without touching the filesystem.
type Noop struct{}

func (Noop) Name() string               { return "noop" }
func (Noop) Description() string        { return "Does nothing; always returns \"ok\"." }
func (Noop) Parameters() map[string]any  { return map[string]any{} }
func (Noop) IsMutation() bool           { return false }

func (Noop) Execute(ctx context.Context, input map[string]string, emit func(events.Event)) (Result, error) {
	return Result{Output: "ok"}, nil
}
