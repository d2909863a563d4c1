// Package agentlog is the in-memory, append-only structured logger the
// agent loop flushes to disk at the end of a run (spec.md §4.8), grounded
// in the teacher's zerolog.Warn-and-swallow logging discipline in
// internal/llm/loop.go and internal/mcp/proxy.go.
package agentlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Category is the event category, one of the fixed set spec.md §4.8 names.
type Category string

const (
	CategoryAgentLoop Category = "agent_loop"
	CategoryLLM       Category = "llm"
	CategoryToolCall  Category = "tool_call"
	CategoryToolParse Category = "tool_parse"
	CategoryMessage   Category = "message"
	CategorySnapshot  Category = "snapshot"
	CategoryContext   Category = "context"
	CategoryMCP       Category = "mcp"
)

// Level is the entry's severity.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	maxDebugLogs   = 20
	largeFieldCap  = 500
	otherFieldCap  = 1000
)

var largeContentKeys = map[string]bool{
	"content": true, "file_content": true, "patch": true,
	"diff": true, "body": true, "old_string": true, "new_string": true,
}

// Entry is one append-only log record.
type Entry struct {
	ISOTimestamp string         `json:"iso_timestamp"`
	ElapsedMS    int64          `json:"elapsed_ms"`
	Level        Level          `json:"level"`
	Category     Category       `json:"category"`
	Event        string         `json:"event"`
	Data         map[string]any `json:"data,omitempty"`
	Iteration    *int           `json:"iteration,omitempty"`
	DurationMS   *int64         `json:"duration_ms,omitempty"`
}

// Summary is the incrementally-updated counters block in DebugLog.
type Summary struct {
	Iterations      int            `json:"iterations"`
	TotalToolCalls  int            `json:"total_tool_calls"`
	ToolCallsByName map[string]int `json:"tool_calls_by_name"`
	Errors          int            `json:"errors"`
	Warnings        int            `json:"warnings"`
	InputTokens     int            `json:"input_tokens"`
	OutputTokens    int            `json:"output_tokens"`
	DoomLoopDetected bool          `json:"doom_loop_detected"`
	HitIterationLimit bool         `json:"hit_iteration_limit"`
	Aborted         bool           `json:"aborted"`
}

// DebugLog is the full serialized run record written to disk.
type DebugLog struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	ProjectID   string    `json:"project_id"`
	Model       string    `json:"model"`
	Mode        string    `json:"mode"`
	StartedAt   string    `json:"started_at"`
	CompletedAt string    `json:"completed_at"`
	TotalMS     int64     `json:"total_ms"`
	Summary     Summary   `json:"summary"`
	Entries     []Entry   `json:"entries"`
}

// Logger is the append-only in-memory log for one run.
type Logger struct {
	mu        sync.Mutex
	id        string
	sessionID string
	projectID string
	model     string
	mode      string
	start     time.Time
	entries   []Entry
	summary   Summary
}

func New(id, sessionID, projectID, model, mode string) *Logger {
	return &Logger{
		id:        id,
		sessionID: sessionID,
		projectID: projectID,
		model:     model,
		mode:      mode,
		start:     time.Now(),
		summary:   Summary{ToolCallsByName: map[string]int{}},
	}
}

// StartTimer returns a closure yielding elapsed milliseconds when invoked.
func (l *Logger) StartTimer() func() int64 {
	begin := time.Now()
	return func() int64 {
		return time.Since(begin).Milliseconds()
	}
}

// Log appends one entry and updates the running summary counters.
func (l *Logger) Log(level Level, category Category, event string, data map[string]any, iteration *int, durationMS *int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sanitized := sanitize(data)
	l.entries = append(l.entries, Entry{
		ISOTimestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ElapsedMS:    time.Since(l.start).Milliseconds(),
		Level:        level,
		Category:     category,
		Event:        event,
		Data:         sanitized,
		Iteration:    iteration,
		DurationMS:   durationMS,
	})

	switch level {
	case LevelError:
		l.summary.Errors++
	case LevelWarning:
		l.summary.Warnings++
	}
	if category == CategoryToolCall {
		if name, ok := data["name"].(string); ok {
			l.summary.ToolCallsByName[name]++
			l.summary.TotalToolCalls++
		}
	}
}

// RecordIteration increments the iteration counter.
func (l *Logger) RecordIteration() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summary.Iterations++
}

// RecordTokens adds to the running input/output token totals.
func (l *Logger) RecordTokens(input, output int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summary.InputTokens += input
	l.summary.OutputTokens += output
}

// MarkDoomLoop, MarkIterationLimit, MarkAborted flag terminal conditions
// in the summary for later inspection.
func (l *Logger) MarkDoomLoop()       { l.mu.Lock(); l.summary.DoomLoopDetected = true; l.mu.Unlock() }
func (l *Logger) MarkIterationLimit() { l.mu.Lock(); l.summary.HitIterationLimit = true; l.mu.Unlock() }
func (l *Logger) MarkAborted()        { l.mu.Lock(); l.summary.Aborted = true; l.mu.Unlock() }

// sanitize truncates known large-content fields to 500 chars and any other
// string over 1000 chars to 1000, each with a "... (N chars total)" suffix.
func sanitize(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		limit := otherFieldCap
		if largeContentKeys[k] {
			limit = largeFieldCap
		}
		out[k] = truncate(s, limit)
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return fmt.Sprintf("%s… (%d chars total)", s[:limit], len(s))
}

// Flush serializes the log to JSON and writes it under the run's debug-log
// directory, then prunes sibling logs past maxDebugLogs. All failures are
// logged and swallowed.
func (l *Logger) Flush(projectRoot string) {
	l.mu.Lock()
	dl := DebugLog{
		ID:          l.id,
		SessionID:   l.sessionID,
		ProjectID:   l.projectID,
		Model:       l.model,
		Mode:        l.mode,
		StartedAt:   l.start.UTC().Format(time.RFC3339Nano),
		CompletedAt: time.Now().UTC().Format(time.RFC3339Nano),
		TotalMS:     time.Since(l.start).Milliseconds(),
		Summary:     l.summary,
		Entries:     append([]Entry(nil), l.entries...),
	}
	l.mu.Unlock()

	dir := filepath.Join(projectRoot, ".agent", "debug-logs")
	if l.sessionID != "" {
		dir = filepath.Join(projectRoot, ".agent", "sessions", l.sessionID, "debug-logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Msg("agentlog: failed to create debug-log directory")
		return
	}

	data, err := json.MarshalIndent(dl, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("agentlog: failed to marshal debug log")
		return
	}

	path := filepath.Join(dir, l.id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Err(err).Msg("agentlog: failed to write debug log")
		return
	}

	pruneOldLogs(dir)
}

// pruneOldLogs keeps only the newest maxDebugLogs files in dir, ranked by
// file modification time. Log ids are UUIDs (see loop.go's uuid.NewString),
// so there is no numeric or lexical ordering to sort by; mtime is the only
// reliable creation-order signal available.
func pruneOldLogs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Msg("agentlog: failed to list debug-log directory")
		return
	}

	type item struct {
		name    string
		modTime time.Time
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{name: e.Name(), modTime: info.ModTime()})
	}

	if len(items) <= maxDebugLogs {
		return
	}

	sort.Slice(items, func(i, j int) bool { return items[i].modTime.After(items[j].modTime) })
	for _, it := range items[maxDebugLogs:] {
		if err := os.Remove(filepath.Join(dir, it.name)); err != nil {
			log.Warn().Err(err).Str("file", it.name).Msg("agentlog: failed to prune old debug log")
		}
	}
}
