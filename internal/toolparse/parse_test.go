package toolparse

import "testing"

func TestParse_SingleToolCall(t *testing.T) {
	in := "Reading.\n<tool_use>\n{\"name\":\"file_read\",\"input\":{\"path\":\"/a.txt\"}}\n</tool_use>\nDone."
	res := Parse(in)

	if len(res.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(res.ToolCalls))
	}
	call := res.ToolCalls[0]
	if call.Name != "file_read" {
		t.Errorf("name = %q", call.Name)
	}
	if call.Input["path"] != "/a.txt" {
		t.Errorf("path = %q", call.Input["path"])
	}
	if len(res.TextParts) != 2 || res.TextParts[0] != "Reading." || res.TextParts[1] != "Done." {
		t.Errorf("text parts = %#v", res.TextParts)
	}
}

func TestParse_TruncatedJSON(t *testing.T) {
	in := `<tool_use>
{"name":"file_read","input":{"path":"/a.txt"`
	res := Parse(in)
	if len(res.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(res.ToolCalls))
	}
	if res.ToolCalls[0].Name != "file_read" {
		t.Errorf("name = %q", res.ToolCalls[0].Name)
	}
	if res.ToolCalls[0].Input["path"] != "/a.txt" {
		t.Errorf("path = %q", res.ToolCalls[0].Input["path"])
	}
}

func TestParse_EmptyNameRejected(t *testing.T) {
	in := `<tool_use>{"name":"","input":{}}</tool_use>`
	res := Parse(in)
	if len(res.ToolCalls) != 0 {
		t.Fatalf("expected empty name to be rejected, got %#v", res.ToolCalls)
	}
	if len(res.TextParts) != 1 {
		t.Fatalf("expected raw block preserved as text, got %#v", res.TextParts)
	}
}

func TestParse_UnparseableBlockPreservedAsText(t *testing.T) {
	in := `<tool_use>not json at all &&&</tool_use>`
	res := Parse(in)
	if len(res.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls, got %#v", res.ToolCalls)
	}
	if len(res.TextParts) != 1 {
		t.Fatalf("expected 1 text part, got %#v", res.TextParts)
	}
}

func TestParse_NonStringValuesSerialized(t *testing.T) {
	in := `<tool_use>{"name":"t","input":{"count":3,"ok":true,"tags":["a","b"]}}</tool_use>`
	res := Parse(in)
	if len(res.ToolCalls) != 1 {
		t.Fatalf("got %d calls", len(res.ToolCalls))
	}
	in2 := res.ToolCalls[0].Input
	if in2["count"] != "3" {
		t.Errorf("count = %q", in2["count"])
	}
	if in2["ok"] != "true" {
		t.Errorf("ok = %q", in2["ok"])
	}
	if in2["tags"] != `["a","b"]` {
		t.Errorf("tags = %q", in2["tags"])
	}
}

func TestParse_InputFallbackTopLevelKeys(t *testing.T) {
	in := `<tool_use>{"name":"t","path":"/a.txt"}</tool_use>`
	res := Parse(in)
	if len(res.ToolCalls) != 1 {
		t.Fatalf("got %d calls", len(res.ToolCalls))
	}
	if res.ToolCalls[0].Input["path"] != "/a.txt" {
		t.Errorf("path = %q", res.ToolCalls[0].Input["path"])
	}
}

func TestParse_DialectA(t *testing.T) {
	in := `<function_calls><invoke><parameter name="name">file_read</parameter><parameter name="input">{"path":"/a.txt"}</parameter></invoke></function_calls>`
	res := Parse(in)
	if len(res.ToolCalls) != 1 {
		t.Fatalf("got %d calls: %#v", len(res.ToolCalls), res)
	}
	if res.ToolCalls[0].Name != "file_read" {
		t.Errorf("name = %q", res.ToolCalls[0].Name)
	}
	if res.ToolCalls[0].Input["path"] != "/a.txt" {
		t.Errorf("path = %q", res.ToolCalls[0].Input["path"])
	}
}

func TestParse_DialectB(t *testing.T) {
	in := `<function_calls><invoke name="file_read"><parameter name="path">/a.txt</parameter></invoke></function_calls>`
	res := Parse(in)
	if len(res.ToolCalls) != 1 {
		t.Fatalf("got %d calls: %#v", len(res.ToolCalls), res)
	}
	if res.ToolCalls[0].Name != "file_read" {
		t.Errorf("name = %q", res.ToolCalls[0].Name)
	}
	if res.ToolCalls[0].Input["path"] != "/a.txt" {
		t.Errorf("path = %q", res.ToolCalls[0].Input["path"])
	}
}

func TestParse_DialectB_MultipleInvokes(t *testing.T) {
	in := `<function_calls><invoke name="a"><parameter name="x">1</parameter></invoke><invoke name="b"><parameter name="y">2</parameter></invoke></function_calls>`
	res := Parse(in)
	if len(res.ToolCalls) != 2 {
		t.Fatalf("got %d calls, want 2", len(res.ToolCalls))
	}
}

func TestParse_NoDialectUnchanged(t *testing.T) {
	in := "plain text with no tool calls at all"
	res := Parse(in)
	if len(res.ToolCalls) != 0 {
		t.Fatalf("expected no calls, got %#v", res.ToolCalls)
	}
	if len(res.TextParts) != 1 || res.TextParts[0] != in {
		t.Errorf("text parts = %#v", res.TextParts)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	res := Parse("")
	if len(res.TextParts) != 0 || len(res.ToolCalls) != 0 {
		t.Errorf("expected empty result, got %#v", res)
	}
}

func TestParse_Idempotent(t *testing.T) {
	in := "Reading.\n<tool_use>\n{\"name\":\"file_read\",\"input\":{\"path\":\"/a.txt\"}}\n</tool_use>\nDone."
	r1 := Parse(in)
	r2 := Parse(in)
	if len(r1.ToolCalls) != len(r2.ToolCalls) || len(r1.TextParts) != len(r2.TextParts) {
		t.Fatalf("not idempotent: %#v vs %#v", r1, r2)
	}
}

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"", "<tool_use>", "</tool_use>", "<tool_use></tool_use>",
		"<tool_use><tool_use></tool_use>", "\x00\x01", "日本語",
		"<function_calls></function_calls>",
		"<function_calls><invoke></invoke></function_calls>",
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("panicked on %q: %v", in, r)
				}
			}()
			Parse(in)
		}()
	}
}
