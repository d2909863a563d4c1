package agent

import (
	"context"
	"testing"
	"time"

	"github.com/xonecas/symb-core/internal/config"
	"github.com/xonecas/symb-core/internal/events"
	"github.com/xonecas/symb-core/internal/executor"
	"github.com/xonecas/symb-core/internal/message"
	"github.com/xonecas/symb-core/internal/provider"
)

func testConfig() config.EngineConfig {
	var cfg config.EngineConfig
	return cfg.WithDefaults()
}

func collectAll(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestRun_PlainTextResponseEndsLoop(t *testing.T) {
	prov := provider.NewMock("mock", "All done.")
	execs := executor.NewRegistry()
	execs.Register(executor.Noop{})

	req := Request{
		Messages:    []message.Message{message.User("do the thing")},
		Mode:        ModeAsk,
		Model:       "mock-model",
		ProjectRoot: t.TempDir(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := collectAll(Run(ctx, req, prov, execs, testConfig()))

	var sawFinish bool
	for _, e := range out {
		if e.Kind == events.KindRunFinished {
			sawFinish = true
			if e.FinishReason != events.FinishStop {
				t.Errorf("finish reason = %v, want stop", e.FinishReason)
			}
		}
		if e.Kind == events.KindRunError {
			t.Fatalf("unexpected RunError: %s", e.Message)
		}
	}
	if !sawFinish {
		t.Fatal("expected a RunFinished event")
	}
}

func TestRun_RepeatedToolCallEmitsToolCallEndAndFinishes(t *testing.T) {
	prov := provider.NewMock("mock", "")
	prov.WithTokens([]string{
		"Running.\n<tool_use>\n{\"name\":\"noop\",\"input\":{}}\n</tool_use>\n",
	})
	execs := executor.NewRegistry()
	execs.Register(executor.Noop{})

	req := Request{
		Messages:    []message.Message{message.User("do the thing")},
		Mode:        ModeCode,
		Model:       "mock-model",
		ProjectRoot: t.TempDir(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := collectAll(Run(ctx, req, prov, execs, testConfig()))

	var sawToolCallEnd, sawFinish bool
	for _, e := range out {
		if e.Kind == events.KindToolCallEnd && e.Name == "noop" {
			sawToolCallEnd = true
		}
		if e.Kind == events.KindRunFinished {
			sawFinish = true
		}
	}
	if !sawToolCallEnd {
		t.Error("expected a ToolCallEnd event for noop")
	}
	if !sawFinish {
		t.Error("expected a RunFinished event")
	}
}

func TestRun_UserQuestionEndsLoopImmediately(t *testing.T) {
	prov := provider.NewMock("mock", "")
	prov.WithTokens([]string{
		"<tool_use>\n{\"name\":\"user_question\",\"input\":{\"question\":\"which file?\"}}\n</tool_use>",
	})
	execs := executor.NewRegistry()
	execs.Register(executor.UserQuestion{})

	req := Request{
		Messages:    []message.Message{message.User("do the thing")},
		Mode:        ModeCode,
		Model:       "mock-model",
		ProjectRoot: t.TempDir(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := collectAll(Run(ctx, req, prov, execs, testConfig()))

	toolCallEnds := 0
	for _, e := range out {
		if e.Kind == events.KindToolCallEnd {
			toolCallEnds++
		}
	}
	if toolCallEnds != 1 {
		t.Errorf("got %d ToolCallEnd events, want exactly 1 (loop must stop after user_question)", toolCallEnds)
	}
}

func TestRun_StreamErrorSurfacesRunError(t *testing.T) {
	prov := provider.NewMock("mock", "irrelevant").WithStreamError(errBoom)
	execs := executor.NewRegistry()

	req := Request{
		Messages:    []message.Message{message.User("do the thing")},
		Mode:        ModeAsk,
		Model:       "mock-model",
		ProjectRoot: t.TempDir(),
	}

	cfg := testConfig()
	cfg.MaxRetryAttempts = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := collectAll(Run(ctx, req, prov, execs, cfg))

	var sawRunError bool
	for _, e := range out {
		if e.Kind == events.KindRunError {
			sawRunError = true
		}
		if e.Kind == events.KindRunFinished {
			t.Error("must not emit RunFinished after a terminal error")
		}
	}
	if !sawRunError {
		t.Fatal("expected a RunError event")
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom: non-retryable" }

var errBoom = boomError{}
