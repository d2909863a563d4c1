package agentlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestLog_UpdatesSummaryCounters(t *testing.T) {
	l := New("log1", "", "proj", "model", "code")
	l.Log(LevelWarning, CategoryLLM, "empty_response", nil, nil, nil)
	l.Log(LevelError, CategoryAgentLoop, "invariant_violation", nil, nil, nil)
	l.Log(LevelInfo, CategoryToolCall, "tool_call", map[string]any{"name": "grep"}, nil, nil)
	l.Log(LevelInfo, CategoryToolCall, "tool_call", map[string]any{"name": "grep"}, nil, nil)

	if l.summary.Warnings != 1 || l.summary.Errors != 1 {
		t.Errorf("summary = %+v", l.summary)
	}
	if l.summary.ToolCallsByName["grep"] != 2 || l.summary.TotalToolCalls != 2 {
		t.Errorf("tool call counts = %+v", l.summary)
	}
}

func TestSanitize_LargeContentField(t *testing.T) {
	long := strings.Repeat("a", 600)
	out := sanitize(map[string]any{"content": long, "other_field": long})

	got, ok := out["content"].(string)
	if !ok || len(got) >= len(long) {
		t.Fatalf("large-content field not truncated: %q", got)
	}
	if !strings.Contains(got, "600 chars total") {
		t.Errorf("missing truncation suffix: %q", got)
	}

	otherGot := out["other_field"].(string)
	if otherGot != long {
		t.Errorf("600-char non-large field should be untouched (<=1000), got len %d", len(otherGot))
	}
}

func TestSanitize_OtherFieldOver1000(t *testing.T) {
	long := strings.Repeat("b", 1500)
	out := sanitize(map[string]any{"note": long})
	got := out["note"].(string)
	if len(got) >= len(long) {
		t.Fatalf("expected truncation, got full length %d", len(got))
	}
	if !strings.Contains(got, "1500 chars total") {
		t.Errorf("missing truncation suffix: %q", got)
	}
}

func TestStartTimer(t *testing.T) {
	l := New("log1", "", "proj", "model", "code")
	elapsed := l.StartTimer()
	ms := elapsed()
	if ms < 0 {
		t.Errorf("elapsed = %d, want >= 0", ms)
	}
}

func TestFlush_WritesDebugLogWithoutSession(t *testing.T) {
	root := t.TempDir()
	l := New("123", "", "proj", "model", "code")
	l.Log(LevelInfo, CategoryAgentLoop, "start", nil, nil, nil)
	l.Flush(root)

	path := filepath.Join(root, ".agent", "debug-logs", "123.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("debug log not written: %v", err)
	}
	var dl DebugLog
	if err := json.Unmarshal(data, &dl); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if dl.ID != "123" || len(dl.Entries) != 1 {
		t.Errorf("dl = %+v", dl)
	}
}

func TestFlush_WritesUnderSessionDir(t *testing.T) {
	root := t.TempDir()
	l := New("999", "sess1", "proj", "model", "code")
	l.Flush(root)

	path := filepath.Join(root, ".agent", "sessions", "sess1", "debug-logs", "999.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected session-scoped debug log: %v", err)
	}
}

func TestFlush_RetainsOnlyNewestMaxDebugLogs(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < maxDebugLogs+5; i++ {
		l := New(strconv.Itoa(1000+i), "", "proj", "model", "code")
		l.Flush(root)
	}

	dir := filepath.Join(root, ".agent", "debug-logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != maxDebugLogs {
		t.Errorf("got %d retained logs, want %d", len(entries), maxDebugLogs)
	}
	if _, err := os.Stat(filepath.Join(dir, strconv.Itoa(1000+maxDebugLogs+4)+".json")); err != nil {
		t.Error("most recent log must survive pruning")
	}
}
