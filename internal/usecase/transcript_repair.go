package usecase

import (
	"time"

	"arxiv-scholar/internal/domain"
)

// RepairTranscript returns a copy of the history in which every assistant
// tool call is matched by exactly one tool result. Results that answer no
// open call are dropped; calls that never got a result gain a synthetic
// error result, since providers reject transcripts with unanswered calls.
// The input slice is not modified.
func RepairTranscript(messages []domain.Message) []domain.Message {
	if len(messages) == 0 {
		return messages
	}

	out := make([]domain.Message, 0, len(messages))
	open := make(map[string]domain.ToolCall) // call ID -> unanswered call

	// closeOpenCalls answers every still-open call with a synthetic error
	// result. Called whenever a new conversational turn begins.
	closeOpenCalls := func() {
		for id, call := range open {
			out = append(out, syntheticToolResult(id, call.Name))
		}
		clear(open)
	}

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleAssistant:
			closeOpenCalls()
			for _, tc := range msg.ToolCalls {
				if tc.ID != "" {
					open[tc.ID] = tc
				}
			}
			out = append(out, msg)

		case domain.RoleTool:
			id := resultCallID(msg)
			if _, ok := open[id]; !ok {
				// Answers no open call. Dropping it keeps the pairing valid.
				continue
			}
			delete(open, id)
			out = append(out, msg)

		default:
			closeOpenCalls()
			out = append(out, msg)
		}
	}
	closeOpenCalls()

	return out
}

// syntheticToolResult fabricates an error result for a call the history
// never answered.
func syntheticToolResult(id, name string) domain.Message {
	return domain.Message{
		Role:    domain.RoleTool,
		Name:    name,
		Content: "[error] tool call did not produce a result",
		ToolCalls: []domain.ToolCall{{
			ID:   id,
			Name: name,
		}},
		Timestamp: time.Now(),
	}
}

func resultCallID(msg domain.Message) string {
	if len(msg.ToolCalls) > 0 {
		return msg.ToolCalls[0].ID
	}
	return ""
}
