package divergence

import "testing"

func TestBelowThreshold_AllFalse(t *testing.T) {
	d := New(Thresholds{})
	d.RecordCall("grep", `{"q":"x"}`, true)
	if d.DoomLoop() {
		t.Error("DoomLoop true below threshold")
	}
	if d.SameToolLoop() != "" {
		t.Error("SameToolLoop nonempty below threshold")
	}
	if d.FailureLoop() != "" {
		t.Error("FailureLoop nonempty below threshold")
	}
	if d.NoProgress() {
		t.Error("NoProgress true below threshold")
	}
	if d.MutationFailureLoop() {
		t.Error("MutationFailureLoop true below threshold")
	}
}

func TestDoomLoop(t *testing.T) {
	d := New(Thresholds{})
	for i := 0; i < DefaultDoomLoopWindow; i++ {
		d.RecordCall("grep", `{"q":"x"}`, true)
	}
	if !d.DoomLoop() {
		t.Fatal("expected doom loop")
	}
	d.RecordCall("grep", `{"q":"y"}`, true)
	if d.DoomLoop() {
		t.Fatal("expected no doom loop after differing args")
	}
}

func TestSameToolLoop_ExcludesReadOnly(t *testing.T) {
	d := New(Thresholds{ReadOnlyTools: map[string]bool{"grep": true}})
	for i := 0; i < DefaultSameToolWindow; i++ {
		d.RecordCall("grep", `{}`, true)
	}
	if got := d.SameToolLoop(); got != "" {
		t.Fatalf("expected read-only tool excluded, got %q", got)
	}

	d2 := New(Thresholds{})
	for i := 0; i < DefaultSameToolWindow; i++ {
		d2.RecordCall("edit", `{}`, true)
	}
	if got := d2.SameToolLoop(); got != "edit" {
		t.Fatalf("SameToolLoop = %q, want edit", got)
	}
}

func TestFailureLoop_NotDilutedByInterleavedSuccess(t *testing.T) {
	d := New(Thresholds{})
	d.RecordCall("edit", `{}`, false)
	d.RecordCall("grep", `{}`, true)
	d.RecordCall("edit", `{}`, false)
	d.RecordCall("grep", `{}`, true)
	d.RecordCall("edit", `{}`, false)

	if got := d.FailureLoop(); got != "edit" {
		t.Fatalf("FailureLoop = %q, want edit", got)
	}
}

func TestNoProgress(t *testing.T) {
	d := New(Thresholds{})
	d.RecordIteration(false, false)
	d.RecordIteration(false, false)
	if !d.NoProgress() {
		t.Fatal("expected no-progress")
	}
	d.RecordIteration(true, false)
	d.RecordIteration(false, false)
	if d.NoProgress() {
		t.Fatal("expected progress to clear no-progress")
	}
}

func TestMutationFailureLoop(t *testing.T) {
	d := New(Thresholds{})
	d.RecordIteration(true, true)
	d.RecordIteration(true, true)
	if !d.MutationFailureLoop() {
		t.Fatal("expected mutation failure loop")
	}
}

func TestReset(t *testing.T) {
	d := New(Thresholds{})
	for i := 0; i < 5; i++ {
		d.RecordCall("grep", `{}`, true)
	}
	d.RecordIteration(true, true)
	d.Reset()

	if d.Length() != 0 {
		t.Errorf("Length() = %d after reset, want 0", d.Length())
	}
	if d.DoomLoop() || d.SameToolLoop() != "" || d.FailureLoop() != "" || d.NoProgress() || d.MutationFailureLoop() {
		t.Error("detector not fully reset")
	}
}

func TestLength_CountsFailures(t *testing.T) {
	d := New(Thresholds{})
	d.RecordCall("a", "{}", true)
	d.RecordCall("b", "{}", false)
	if d.Length() != 2 {
		t.Errorf("Length() = %d, want 2", d.Length())
	}
}

func TestRingNeverExceedsMax(t *testing.T) {
	d := New(Thresholds{})
	for i := 0; i < ringCapacity*3; i++ {
		d.RecordCall("x", "{}", true)
	}
	if len(d.calls.entries) > ringCapacity {
		t.Errorf("ring grew past capacity: %d", len(d.calls.entries))
	}
}
