package domain

// TokenCounter estimates token usage for context budget checks.
type TokenCounter interface {
	Count(text string) int
	CountMessages(msgs []Message) int
}
