// Package tokens tracks per-turn cumulative token counters (spec.md §4.7).
package tokens

// Usage is a single turn's token counts. The agent loop fills Input and
// Output with character-based estimates, since the provider stream carries
// no usage payload.
type Usage struct {
	Input      int
	Output     int
	CacheRead  int
	CacheWrite int
}

// Tracker accumulates Usage across turns. It never decreases.
type Tracker struct {
	Input      int
	Output     int
	CacheRead  int
	CacheWrite int
	Turns      int
}

// Record adds one turn's usage to the running totals.
func (t *Tracker) Record(u Usage) {
	t.Input += u.Input
	t.Output += u.Output
	t.CacheRead += u.CacheRead
	t.CacheWrite += u.CacheWrite
	t.Turns++
}

// Totals snapshots the tracker's current state for emission in a
// Custom{name:"usage"} event.
type Totals struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens"`
	Turns            int `json:"turns"`
}

func (t *Tracker) Totals() Totals {
	return Totals{
		InputTokens:      t.Input,
		OutputTokens:     t.Output,
		CacheReadTokens:  t.CacheRead,
		CacheWriteTokens: t.CacheWrite,
		Turns:            t.Turns,
	}
}
