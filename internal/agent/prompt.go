package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xonecas/symb-core/internal/executor"
)

// basePrompt is the model-agnostic base instructions, grounded in the
// teacher's embedded per-model prompt files (internal/llm/anthropic.md
// etc.) but collapsed to one prompt since the raw-text contract (spec.md's
// Non-goal on native tool-calling) makes a model-specific dialect
// unnecessary — every model sees the same <tool_use> output contract.
const basePrompt = `You are an autonomous coding agent. You accomplish tasks by reasoning
about the user's request and, when needed, invoking tools. Work methodically:
read before you write, verify before you declare a task complete.`

const codeModeAddendum = `You are in code mode: you may edit files directly. After finishing a
unit of work, summarize the changes you made.`

const planModeAddendum = `You are in plan mode: do not edit files. Investigate the codebase and
produce a written plan describing the change you would make.`

const askModeAddendum = `You are in ask mode: answer questions about the codebase. Do not edit
files.`

// modeAddendum returns the mode-specific addendum for mode.
func modeAddendum(mode Mode) string {
	switch mode {
	case ModeCode:
		return codeModeAddendum
	case ModePlan:
		return planModeAddendum
	case ModeAsk:
		return askModeAddendum
	default:
		return ""
	}
}

// loadAgentsMD reads the top-level agents.md (case-insensitive) under root
// and truncates it to maxChars, grounded in the teacher's
// LoadAgentInstructions/readFileIfExists pattern.
func loadAgentsMD(root string, maxChars int) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(e.Name(), "agents.md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(data))
		if maxChars > 0 && len(content) > maxChars {
			content = content[:maxChars]
		}
		return content
	}
	return ""
}

// newestPlan returns the content of the newest .agent/plans/*-plan.md file
// under root, or "" if none exists.
func newestPlan(root string) string {
	dir := filepath.Join(root, ".agent", "plans")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "-plan.md") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names) // unix-ms prefix sorts chronologically
	data, err := os.ReadFile(filepath.Join(dir, names[len(names)-1]))
	if err != nil {
		return ""
	}
	return string(data)
}

// buildSystemPrompt assembles the full system prompt per spec.md §4.10:
// base prompt, agents.md guidelines, mode addendum, active plan (code mode
// only), IDE output logs, then the tool-description block last.
func buildSystemPrompt(projectRoot string, mode Mode, agentsMDMax int, ideLogs string, tools []executor.Descriptor) []string {
	var parts []string
	parts = append(parts, basePrompt)

	if guidelines := loadAgentsMD(projectRoot, agentsMDMax); guidelines != "" {
		parts = append(parts, guidelines)
	}

	if addendum := modeAddendum(mode); addendum != "" {
		parts = append(parts, addendum)
	}

	if mode == ModeCode {
		if plan := newestPlan(projectRoot); plan != "" {
			parts = append(parts, "Active plan:\n"+plan)
		}
	}

	if strings.TrimSpace(ideLogs) != "" {
		parts = append(parts, "IDE output:\n"+ideLogs)
	}

	parts = append(parts, toolDescriptionBlock(tools))

	return parts
}

// toolDescriptionBlock renders the strict <tool_use> output contract and a
// sketch of each available tool.
func toolDescriptionBlock(tools []executor.Descriptor) string {
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s (parameters: %v)\n", t.Name, t.Description, t.Parameters)
	}
	b.WriteString("\nTo invoke a tool, emit exactly one block of the form:\n")
	b.WriteString("<tool_use>\n{\"name\": \"<tool name>\", \"input\": {...}}\n</tool_use>\n")
	b.WriteString("Only one tool call is honored per response; anything after it is ignored.")
	return b.String()
}
