// Package divergence implements the five tail-scan detectors that flag
// repetitive, failing, or stalled agent behaviour (spec.md §4.5).
package divergence

const (
	// DefaultDoomLoopWindow is the tail size checked for identical
	// (name, arguments_json) calls.
	DefaultDoomLoopWindow = 3
	// DefaultSameToolWindow is the tail size checked for same-tool-name runs.
	DefaultSameToolWindow = 5
	// DefaultFailureWindow is the tail size of the failures-only ring.
	DefaultFailureWindow = 3
	// DefaultNoProgressWindow is the tail size of the iteration-progress ring.
	DefaultNoProgressWindow = 2
	// DefaultMutationFailureWindow is the tail size of the mutation-failure ring.
	DefaultMutationFailureWindow = 2

	ringCapacity = 64
)

// CallRecord is one entry in the calls ring.
type CallRecord struct {
	Name          string
	ArgumentsJSON string
}

// Thresholds configures the five detector windows. Zero fields fall back
// to their package defaults.
type Thresholds struct {
	DoomLoopWindow            int
	SameToolWindow            int
	FailureWindow             int
	NoProgressWindow          int
	MutationFailureWindow     int
	ReadOnlyTools             map[string]bool
}

func (t Thresholds) withDefaults() Thresholds {
	if t.DoomLoopWindow <= 0 {
		t.DoomLoopWindow = DefaultDoomLoopWindow
	}
	if t.SameToolWindow <= 0 {
		t.SameToolWindow = DefaultSameToolWindow
	}
	if t.FailureWindow <= 0 {
		t.FailureWindow = DefaultFailureWindow
	}
	if t.NoProgressWindow <= 0 {
		t.NoProgressWindow = DefaultNoProgressWindow
	}
	if t.MutationFailureWindow <= 0 {
		t.MutationFailureWindow = DefaultMutationFailureWindow
	}
	if t.ReadOnlyTools == nil {
		t.ReadOnlyTools = map[string]bool{}
	}
	return t
}

// Detector holds the four append-only histories and runs the tail-scan
// checks over them. Zero value is not usable; construct with New.
type Detector struct {
	thresholds Thresholds

	calls                     *ring[CallRecord]
	failures                  *ring[string]
	iterationProgress         *ring[bool]
	iterationMutationFailure  *ring[bool]

	totalCalls int
}

func New(thresholds Thresholds) *Detector {
	return &Detector{
		thresholds:               thresholds.withDefaults(),
		calls:                    newRing[CallRecord](ringCapacity),
		failures:                 newRing[string](ringCapacity),
		iterationProgress:        newRing[bool](ringCapacity),
		iterationMutationFailure: newRing[bool](ringCapacity),
	}
}

// RecordCall appends a tool call. ok indicates whether it succeeded; on
// failure the call name is also pushed to the dedicated failures ring.
func (d *Detector) RecordCall(name, argumentsJSON string, ok bool) {
	d.calls.push(CallRecord{Name: name, ArgumentsJSON: argumentsJSON})
	d.totalCalls++
	if !ok {
		d.failures.push(name)
	}
}

// RecordIteration appends one entry to the iteration-level rings: whether
// this iteration mutated any file, and whether any mutation tool failed.
func (d *Detector) RecordIteration(mutated, mutationFailed bool) {
	d.iterationProgress.push(mutated)
	d.iterationMutationFailure.push(mutationFailed)
}

// Reset clears every ring and the total call counter.
func (d *Detector) Reset() {
	d.calls.reset()
	d.failures.reset()
	d.iterationProgress.reset()
	d.iterationMutationFailure.reset()
	d.totalCalls = 0
}

// Length reports the total number of tool calls observed, including failures.
func (d *Detector) Length() int {
	return d.totalCalls
}

// DoomLoop reports whether the last N calls are all identical
// (name, arguments_json) pairs.
func (d *Detector) DoomLoop() bool {
	tail := d.calls.tail(d.thresholds.DoomLoopWindow)
	if len(tail) < d.thresholds.DoomLoopWindow {
		return false
	}
	first := tail[0]
	for _, c := range tail[1:] {
		if c.Name != first.Name || c.ArgumentsJSON != first.ArgumentsJSON {
			return false
		}
	}
	return true
}

// SameToolLoop reports the tool name if the last N calls all share one
// name and that name is not in the read-only exclusion set; "" otherwise.
func (d *Detector) SameToolLoop() string {
	tail := d.calls.tail(d.thresholds.SameToolWindow)
	if len(tail) < d.thresholds.SameToolWindow {
		return ""
	}
	name := tail[0].Name
	for _, c := range tail[1:] {
		if c.Name != name {
			return ""
		}
	}
	if d.thresholds.ReadOnlyTools[name] {
		return ""
	}
	return name
}

// FailureLoop reports the tool name if the last N entries in the
// failures-only ring all share one name; "" otherwise.
func (d *Detector) FailureLoop() string {
	tail := d.failures.tail(d.thresholds.FailureWindow)
	if len(tail) < d.thresholds.FailureWindow {
		return ""
	}
	name := tail[0]
	for _, n := range tail[1:] {
		if n != name {
			return ""
		}
	}
	return name
}

// NoProgress reports whether the last N iterations each recorded zero file
// changes.
func (d *Detector) NoProgress() bool {
	tail := d.iterationProgress.tail(d.thresholds.NoProgressWindow)
	if len(tail) < d.thresholds.NoProgressWindow {
		return false
	}
	for _, mutated := range tail {
		if mutated {
			return false
		}
	}
	return true
}

// LastCallName returns the name of the most recently recorded call, or ""
// if none have been recorded yet. Used to name the tool in a doom-loop
// status message.
func (d *Detector) LastCallName() string {
	tail := d.calls.tail(1)
	if len(tail) == 0 {
		return ""
	}
	return tail[0].Name
}

// MutationFailureLoop reports whether the last N iterations each had at
// least one failing mutation tool.
func (d *Detector) MutationFailureLoop() bool {
	tail := d.iterationMutationFailure.tail(d.thresholds.MutationFailureWindow)
	if len(tail) < d.thresholds.MutationFailureWindow {
		return false
	}
	for _, failed := range tail {
		if !failed {
			return false
		}
	}
	return true
}
