// Package contextmgr estimates token usage over a message history, checks
// whether there is budget for another iteration, and prunes old tool
// output under a protect-most-recent policy (spec.md §4.6).
package contextmgr

import (
	"github.com/xonecas/symb-core/internal/message"
)

const (
	// Buffer is subtracted from the usable window on top of max_output.
	Buffer = 20_000
	// PruneProtect is how many tokens of the newest tool output survive a prune.
	PruneProtect = 40_000
	// PruneMinimum is the smallest prunable total worth acting on.
	PruneMinimum = 20_000

	placeholder = "[pruned: earlier tool output removed to free context]"
)

// EstimateTokens applies ceil(char_count/4) to every textual field across
// messages, summed.
func EstimateTokens(messages []message.Message) int {
	total := 0
	for _, m := range messages {
		for _, s := range m.TextContent() {
			total += estimateOne(s)
		}
	}
	return total
}

func estimateOne(s string) int {
	n := len(s)
	return (n + 3) / 4
}

// HasBudget reports whether there is room for another iteration given
// contextWindow and maxOutput. contextWindow == 0 means unknown, always
// sufficient.
func HasBudget(messages []message.Message, contextWindow, maxOutput int) bool {
	if contextWindow == 0 {
		return true
	}
	estimated := EstimateTokens(messages)
	return estimated < contextWindow-maxOutput-Buffer
}

// Prune walks messages newest-to-oldest, protects the newest tool outputs
// up to PruneProtect tokens past the most recent user turn, and replaces
// everything else with a fixed placeholder, provided the prunable total
// reaches PruneMinimum. It returns a new slice (messages are immutable)
// and the number of tokens pruned.
func Prune(messages []message.Message) ([]message.Message, int) {
	n := len(messages)
	protectedFrom := make([]bool, n) // true if message at this index is protected from pruning
	prunableIdx := make([]int, 0, n)

	userTurns := 0
	protectedTokens := 0

	for i := n - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == message.RoleUser {
			userTurns++
		}
		if userTurns < 2 {
			protectedFrom[i] = true
			continue
		}
		if m.Role != message.RoleTool {
			protectedFrom[i] = true
			continue
		}
		cost := estimateOne(m.Result)
		if protectedTokens+cost <= PruneProtect {
			protectedTokens += cost
			protectedFrom[i] = true
			continue
		}
		prunableIdx = append(prunableIdx, i)
	}

	prunableTotal := 0
	for _, i := range prunableIdx {
		prunableTotal += estimateOne(messages[i].Result)
	}

	if prunableTotal < PruneMinimum {
		out := make([]message.Message, n)
		copy(out, messages)
		return out, 0
	}

	out := make([]message.Message, n)
	copy(out, messages)
	for _, i := range prunableIdx {
		pruned := out[i]
		pruned.Result = placeholder
		out[i] = pruned
	}
	return out, prunableTotal
}
