package domain

import "unicode/utf8"

// StepType identifies a stage of an agent run as seen by a stream consumer.
type StepType string

const (
	StepThinking   StepType = "thinking"
	StepToolCall   StepType = "tool_call"
	StepToolResult StepType = "tool_result"
	StepAnswer     StepType = "answer"
	StepError      StepType = "error"
	StepDone       StepType = "done"
)

// MaxToolResultChars caps the tool output shown on the step stream. The full
// content still goes into the conversation; only the display copy is cut.
const MaxToolResultChars = 3000

// Step is one event on the agent's output stream. Tool is set for tool_call
// and tool_result steps.
type Step struct {
	Type    StepType `json:"type"`
	Content string   `json:"content,omitempty"`
	Tool    string   `json:"tool,omitempty"`
}

// TruncateForDisplay shortens s to at most MaxToolResultChars bytes plus a
// marker. The cut backs up to a rune boundary so the stream stays valid
// UTF-8.
func TruncateForDisplay(s string) string {
	if len(s) <= MaxToolResultChars {
		return s
	}
	cut := MaxToolResultChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... [truncated]"
}
