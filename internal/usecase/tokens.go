package usecase

import (
	"github.com/pkoukk/tiktoken-go"

	"arxiv-scholar/internal/domain"
)

// messageOverheadTokens approximates the per-message framing cost
// (role markers, separators) that providers add around content.
const messageOverheadTokens = 4

// TokenCounter estimates token counts using tiktoken's cl100k_base encoding.
// Gemini and Claude tokenizers differ from it, but the estimate is close
// enough for budget checks, which apply a safety margin anyway.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for the given model. The model name is
// tried against tiktoken's model table first, falling back to cl100k_base.
func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	return &TokenCounter{enc: enc}
}

// Count returns the estimated token count of a text.
func (tc *TokenCounter) Count(text string) int {
	if tc.enc == nil {
		// Rough heuristic when the encoding data is unavailable.
		return len(text) / 4
	}
	return len(tc.enc.Encode(text, nil, nil))
}

// CountMessages sums the token estimates of all messages including framing.
func (tc *TokenCounter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += tc.Count(m.Content) + messageOverheadTokens
		for _, call := range m.ToolCalls {
			total += tc.Count(call.Name) + tc.Count(string(call.Arguments))
		}
	}
	return total
}

var _ domain.TokenCounter = (*TokenCounter)(nil)
