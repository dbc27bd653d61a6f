package usecase

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arxiv-scholar/internal/domain"
)

// fixedTokenCounter returns a fixed count per message, so truncation
// visibly changes the total.
type fixedTokenCounter struct {
	perMessage int
}

func (f *fixedTokenCounter) Count(_ string) int { return f.perMessage }
func (f *fixedTokenCounter) CountMessages(msgs []domain.Message) int {
	return f.perMessage * len(msgs)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestContextGuardUnderLimit(t *testing.T) {
	guard := NewContextGuard(ContextGuardConfig{
		MaxTokens:     128000,
		ReserveTokens: 1000,
		SafetyMargin:  0.15,
	}, &fixedTokenCounter{perMessage: 10}, testLogger())

	session := NewSession()
	session.AddMessage(domain.Message{Role: domain.RoleUser, Content: "hello"})

	require.NoError(t, guard.Check(session))
	assert.Len(t, session.Messages(), 1)
}

func TestContextGuardTruncatesOverLimit(t *testing.T) {
	// 100 messages at 100 tokens each = 10000 tokens against a limit of
	// roughly 7500; truncation to keepRecent must bring it back under.
	guard := NewContextGuard(ContextGuardConfig{
		MaxTokens:     10000,
		ReserveTokens: 1000,
		SafetyMargin:  0.15,
		KeepRecent:    10,
	}, &fixedTokenCounter{perMessage: 100}, testLogger())

	session := NewSession()
	for i := 0; i < 100; i++ {
		session.AddMessage(domain.Message{Role: domain.RoleUser, Content: "filler"})
	}

	require.NoError(t, guard.Check(session))
	assert.Len(t, session.Messages(), 10)
}

func TestContextGuardOverflowAfterTruncation(t *testing.T) {
	// Even the kept tail exceeds the budget: Check must report overflow.
	guard := NewContextGuard(ContextGuardConfig{
		MaxTokens:     1000,
		ReserveTokens: 100,
		SafetyMargin:  0.15,
		KeepRecent:    10,
	}, &fixedTokenCounter{perMessage: 5000}, testLogger())

	session := NewSession()
	for i := 0; i < 20; i++ {
		session.AddMessage(domain.Message{Role: domain.RoleUser, Content: "filler"})
	}

	assert.ErrorIs(t, guard.Check(session), domain.ErrContextOverflow)
}

func TestContextGuardDefaultsApplied(t *testing.T) {
	guard := NewContextGuard(ContextGuardConfig{}, &fixedTokenCounter{perMessage: 1}, testLogger())

	assert.Equal(t, 128000, guard.maxTokens)
	assert.Equal(t, 1000, guard.reserveTokens)
	assert.InDelta(t, 0.15, guard.safetyMargin, 1e-9)
	assert.Equal(t, 10, guard.keepRecent)
}
