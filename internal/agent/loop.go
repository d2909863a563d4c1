// Package agent is the agent loop controller (C10), the orchestrator tying
// together the streaming emitter (C3), tool-call scanner (C2), retry (C4),
// divergence detector (C5), context manager (C6), token tracker (C7),
// structured logger (C8), and snapshot manager (C9). Grounded in the
// teacher's internal/llm/loop.go ProcessTurn, generalized from a
// provider-native tool-calling loop to one driven entirely by the raw-text
// <tool_use> contract.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xonecas/symb-core/internal/agentlog"
	"github.com/xonecas/symb-core/internal/config"
	"github.com/xonecas/symb-core/internal/contextmgr"
	"github.com/xonecas/symb-core/internal/divergence"
	"github.com/xonecas/symb-core/internal/events"
	"github.com/xonecas/symb-core/internal/executor"
	"github.com/xonecas/symb-core/internal/message"
	"github.com/xonecas/symb-core/internal/provider"
	"github.com/xonecas/symb-core/internal/retry"
	"github.com/xonecas/symb-core/internal/snapshot"
	"github.com/xonecas/symb-core/internal/streaming"
	"github.com/xonecas/symb-core/internal/tokens"
)

// Mode is the agent's operating mode (spec.md §4.10's mode ∈ {code, plan, ask}).
type Mode string

const (
	ModeCode Mode = "code"
	ModePlan Mode = "plan"
	ModeAsk  Mode = "ask"
)

// Request is one run's inputs.
type Request struct {
	Messages    []message.Message
	Mode        Mode
	Model       string
	SessionID   string
	ProjectID   string
	ProjectRoot string
	IDELogs     string
}

// Run drives one complete agent turn and returns a channel of typed events,
// closed when the run finishes (spec.md §4.10's termination conditions) or
// the context is cancelled.
func Run(ctx context.Context, req Request, prov provider.Provider, execs *executor.Registry, cfg config.EngineConfig) <-chan events.Event {
	out := make(chan events.Event, 16)
	go func() {
		defer close(out)
		runLoop(ctx, req, prov, execs, cfg, out)
	}()
	return out
}

func runLoop(ctx context.Context, req Request, prov provider.Provider, execs *executor.Registry, cfg config.EngineConfig, out chan<- events.Event) {
	runID := uuid.NewString()
	logID := uuid.NewString()
	logger := agentlog.New(logID, req.SessionID, req.ProjectID, req.Model, string(req.Mode))
	readOnlyTools := make(map[string]bool, len(cfg.ReadOnlyTools))
	for _, name := range cfg.ReadOnlyTools {
		readOnlyTools[name] = true
	}
	detector := divergence.New(divergence.Thresholds{
		DoomLoopWindow:        cfg.DoomLoopWindow,
		SameToolWindow:        cfg.SameToolWindow,
		FailureWindow:         cfg.FailureWindow,
		NoProgressWindow:      cfg.NoProgressWindow,
		MutationFailureWindow: cfg.MutationFailureWindow,
		ReadOnlyTools:         readOnlyTools,
	})
	tracker := &tokens.Tracker{}

	var snap *snapshot.Manager
	if req.Mode == ModeCode {
		firstUser := firstUserText(req.Messages)
		if m, err := snapshot.New(req.ProjectRoot, firstUser, time.Now().UnixMilli()); err == nil {
			snap = m
			out <- events.Custom("snapshot_created", map[string]any{
				"id": m.ID(), "label": m.Label(), "changes": m.Changes(),
			})
		}
	}

	out <- events.RunStarted(runID, req.Model)
	out <- events.Custom("status", map[string]any{"message": "Starting..."})

	working := append([]message.Message(nil), req.Messages...)
	tools := execs.Descriptors()
	providerTools := toProviderTools(tools)

	var lastAssistantText string
	lastHadToolCalls := false
	hitIterationLimit := false
	userQuestionFired := false
	aborted := false

	for iteration := 0; iteration < cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			out <- events.Custom("status", map[string]any{"message": "Interrupted"})
			logger.MarkAborted()
			aborted = true
			break
		}

		it := iteration
		logger.RecordIteration()
		out <- events.Custom("status", map[string]any{"message": "Thinking..."})

		if !contextmgr.HasBudget(working, cfg.ContextWindow, cfg.MaxOutputTokens) {
			pruned, n := contextmgr.Prune(working)
			if n > 0 {
				working = pruned
				out <- events.Custom("status", map[string]any{"message": "Pruned context", "tokens_pruned": n})
				logger.Log(agentlog.LevelInfo, agentlog.CategoryContext, "prune", map[string]any{"tokens_pruned": n}, &it, nil)
			}
		}

		systemPrompts := buildSystemPrompt(req.ProjectRoot, req.Mode, cfg.AgentsMDMaxCharacters, req.IDELogs, tools)

		resp, err := callWithRetry(ctx, prov, working, systemPrompts, providerTools, cfg.MaxOutputTokens, cfg.MaxRetryAttempts, out)
		if err != nil {
			if ctx.Err() != nil {
				out <- events.Custom("status", map[string]any{"message": "Interrupted"})
				logger.MarkAborted()
				aborted = true
				break
			}
			code := retry.Classify(err)
			logger.Log(agentlog.LevelError, agentlog.CategoryLLM, "stream_error", map[string]any{"error": err.Error()}, &it, nil)
			out <- events.RunError(err.Error(), code)
			finish(logger, logID, req.ProjectRoot, tracker, snap, out, false, false)
			return
		}

		lastAssistantText = resp.text
		lastHadToolCalls = len(resp.toolCalls) > 0
		tracker.Record(resp.usage)
		logger.RecordTokens(resp.usage.Input, resp.usage.Output)

		mutated := false
		mutationFailed := false
		var toolMessages []message.Message

		if len(resp.toolCalls) > 0 {
			var calls []message.ToolCallRecord
			for _, c := range resp.toolCalls {
				calls = append(calls, message.ToolCallRecord{ID: c.id, Name: c.name, ArgumentsJSON: c.argumentsJSON})

				var queued []events.Event
				result, execErr := execs.Execute(ctx, c.name, c.input, func(e events.Event) { queued = append(queued, e) })

				detector.RecordCall(c.name, c.argumentsJSON, execErr == nil)

				resultText := result.Output
				if execErr != nil {
					resultText = fmt.Sprintf("Error: %v", execErr)
					logger.Log(agentlog.LevelError, agentlog.CategoryToolCall, "tool_error", map[string]any{"name": c.name, "error": execErr.Error()}, &it, nil)
					if execs.IsMutation(c.name) {
						mutationFailed = true
					}
				} else {
					logger.Log(agentlog.LevelInfo, agentlog.CategoryToolCall, "tool_call", map[string]any{"name": c.name}, &it, nil)
				}

				for _, qe := range queued {
					out <- qe
					if qe.Kind == events.KindCustom && qe.CustomName == "file_changed" {
						mutated = true
						captureSnapshot(snap, qe)
					}
				}

				toolMessages = append(toolMessages, message.Tool(c.id, resultText))

				if c.name == executor.UserQuestionTool && execErr == nil {
					userQuestionFired = true
				}
			}

			working = append(working, message.Assistant(lastAssistantText, calls))
			working = append(working, toolMessages...)
		} else {
			working = append(working, message.Assistant(lastAssistantText, nil))
		}

		detector.RecordIteration(mutated, mutationFailed)

		if msg, diverged := checkDivergence(detector); diverged {
			out <- events.Custom("status", map[string]any{"message": msg})
			logger.MarkDoomLoop()
			break
		}

		if userQuestionFired || len(resp.toolCalls) == 0 {
			break
		}

		if iteration == cfg.MaxIterations-1 {
			hitIterationLimit = true
		}
	}

	if hitIterationLimit {
		out <- events.Custom("max_iterations_reached", map[string]any{"max_iterations": cfg.MaxIterations})
		logger.MarkIterationLimit()
	}

	if req.Mode == ModePlan && strings.TrimSpace(lastAssistantText) != "" {
		if path, err := persistPlan(req.ProjectRoot, firstUserText(req.Messages), lastAssistantText); err == nil {
			out <- events.Custom("plan_created", map[string]any{"path": path})
		}
	}

	finish(logger, logID, req.ProjectRoot, tracker, snap, out, !aborted, lastHadToolCalls)
}

// checkDivergence evaluates all five C5 detectors in spec.md §4.5's table
// order and reports the first one that fires, naming its tool in the
// status message when the detector has one.
func checkDivergence(d *divergence.Detector) (string, bool) {
	if d.DoomLoop() {
		return fmt.Sprintf("Repeating the same tool call (%s); stopping.", d.LastCallName()), true
	}
	if name := d.SameToolLoop(); name != "" {
		return fmt.Sprintf("Calling %s repeatedly with no variation; stopping.", name), true
	}
	if name := d.FailureLoop(); name != "" {
		return fmt.Sprintf("%s keeps failing; stopping.", name), true
	}
	if d.NoProgress() {
		return "No file changes across recent iterations; stopping.", true
	}
	if d.MutationFailureLoop() {
		return "Mutation tools keep failing; stopping.", true
	}
	return "", false
}

func finish(logger *agentlog.Logger, logID, projectRoot string, tracker *tokens.Tracker, snap *snapshot.Manager, out chan<- events.Event, emitRunFinished, hadToolCalls bool) {
	if snap != nil && len(snap.Changes()) == 0 {
		snap.Cleanup()
	}

	totals := tracker.Totals()
	if totals.InputTokens > 0 || totals.OutputTokens > 0 {
		out <- events.Custom("usage", map[string]any{
			"input": totals.InputTokens, "output": totals.OutputTokens,
			"cache_read": totals.CacheReadTokens, "cache_write": totals.CacheWriteTokens,
			"turns": totals.Turns,
		})
	}

	logger.Flush(projectRoot)
	out <- events.Custom("debug_log", map[string]any{"id": logID})

	if emitRunFinished {
		reason := events.FinishStop
		if hadToolCalls {
			reason = events.FinishToolCalls
		}
		out <- events.RunFinished(reason)
	}
}

func firstUserText(messages []message.Message) string {
	for _, m := range messages {
		if m.Role == message.RoleUser {
			return m.Text
		}
	}
	return ""
}

func persistPlan(projectRoot, firstUserMessage, planText string) (string, error) {
	dir := filepath.Join(projectRoot, ".agent", "plans")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ts := time.Now().UnixMilli()
	path := filepath.Join(dir, fmt.Sprintf("%d-plan.md", ts))
	header := fmt.Sprintf("# Plan: %s\n\n", truncateRunes(firstUserMessage, 80))
	if err := os.WriteFile(path, []byte(header+planText), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func captureSnapshot(snap *snapshot.Manager, evt events.Event) {
	if snap == nil {
		return
	}
	data := evt.CustomData
	if data == nil {
		return
	}
	path, _ := data["path"].(string)
	action, _ := data["action"].(string)
	before, _ := data["before_content"].(string)
	if path == "" {
		return
	}
	snap.Capture(path, snapshot.Action(action), []byte(before))
}

func toProviderTools(tools []executor.Descriptor) []provider.ToolDescriptor {
	out := make([]provider.ToolDescriptor, len(tools))
	for i, t := range tools {
		out[i] = provider.ToolDescriptor{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	return out
}

// iterResult is one model call's collected output.
type iterResult struct {
	text      string
	toolCalls []toolCallInfo
	usage     tokens.Usage
}

type toolCallInfo struct {
	id            string
	name          string
	argumentsJSON string
	input         map[string]string
}

// callWithRetry calls the provider and collects one iteration's result,
// retrying per spec.md §4.4's classification/backoff on a retryable
// failure, up to maxAttempts.
func callWithRetry(ctx context.Context, prov provider.Provider, messages []message.Message, systemPrompts []string, tools []provider.ToolDescriptor, maxOutput, maxAttempts int, out chan<- events.Event) (iterResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		chunks, err := prov.Stream(ctx, messages, systemPrompts, tools, maxOutput)
		if err == nil {
			result, collectErr := collect(ctx, chunks, out)
			if collectErr == nil {
				result.usage = tokens.Usage{
					Input:  contextmgr.EstimateTokens(messages),
					Output: estimateTokenCount(result.text),
				}
				return result, nil
			}
			lastErr = collectErr
		} else {
			lastErr = err
		}

		reason := retry.Classify(lastErr)
		if reason == "" || attempt == maxAttempts {
			return iterResult{}, lastErr
		}

		out <- events.Custom("status", map[string]any{"message": fmt.Sprintf("Retrying (%s)...", reason)})
		if sleepErr := retry.Sleep(ctx, retry.Delay(lastErr, attempt)); sleepErr != nil {
			return iterResult{}, sleepErr
		}
	}
	return iterResult{}, lastErr
}

// estimateTokenCount mirrors C6's ceil(chars/4) estimator for one string;
// the raw-text Provider contract carries no usage payload of its own, so
// C7 falls back to the same character-based estimate C6 uses for pruning.
func estimateTokenCount(s string) int {
	return (len(s) + 3) / 4
}

// collect drains one model call's event stream, forwarding visible events
// to the consumer while accumulating text and tool-call records. A
// RunError event is converted to a Go error and NOT forwarded — the caller
// decides whether it is retryable before surfacing anything. RunFinished
// is swallowed; the agent loop emits its own single RunFinished at the end
// of the whole turn.
func collect(ctx context.Context, chunks <-chan streaming.Chunk, out chan<- events.Event) (iterResult, error) {
	var text strings.Builder
	var calls []toolCallInfo

	for ev := range streaming.Run(ctx, chunks, streaming.Options{}) {
		switch ev.Kind {
		case events.KindTextMessageContent:
			text.WriteString(ev.Delta)
			out <- ev
		case events.KindToolCallEnd:
			argsJSON, _ := json.Marshal(ev.Input)
			calls = append(calls, toolCallInfo{id: ev.CallID, name: ev.Name, argumentsJSON: string(argsJSON), input: ev.Input})
			out <- ev
		case events.KindRunError:
			return iterResult{}, &retry.ProviderError{Message: ev.Message, Code: retry.Code(ev.Code)}
		case events.KindRunFinished:
			// swallowed; C10 emits its own terminal RunFinished.
		default:
			out <- ev
		}
	}

	return iterResult{text: text.String(), toolCalls: calls}, nil
}
