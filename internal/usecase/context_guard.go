package usecase

import (
	"log/slog"

	"arxiv-scholar/internal/domain"
)

// ContextGuard prevents context window overflow by checking token usage
// before each LLM call and shedding old history when the budget is tight.
type ContextGuard struct {
	maxTokens     int
	reserveTokens int
	safetyMargin  float64 // e.g. 0.15 = 15%
	keepRecent    int
	tokenCounter  domain.TokenCounter
	logger        *slog.Logger
}

// ContextGuardConfig holds settings for the context guard.
type ContextGuardConfig struct {
	MaxTokens     int
	ReserveTokens int
	SafetyMargin  float64
	KeepRecent    int
}

// NewContextGuard creates a context guard with the given dependencies.
func NewContextGuard(cfg ContextGuardConfig, counter domain.TokenCounter, logger *slog.Logger) *ContextGuard {
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = 0.15
	}
	if cfg.SafetyMargin > 0.5 {
		cfg.SafetyMargin = 0.5 // clamp: >50% safety margin is unreasonable
	}
	if cfg.ReserveTokens <= 0 {
		cfg.ReserveTokens = 1000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 128000
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = 10
	}
	return &ContextGuard{
		maxTokens:     cfg.MaxTokens,
		reserveTokens: cfg.ReserveTokens,
		safetyMargin:  cfg.SafetyMargin,
		keepRecent:    cfg.KeepRecent,
		tokenCounter:  counter,
		logger:        logger,
	}
}

// Check evaluates the session's token usage against limits.
// If over the safe threshold, old messages are dropped down to the most
// recent keepRecent entries. Returns domain.ErrContextOverflow if the
// session is still over the limit after truncation.
func (g *ContextGuard) Check(session *Session) error {
	tokens := g.tokenCounter.CountMessages(session.Messages())
	limit := int(float64(g.maxTokens)*(1-g.safetyMargin)) - g.reserveTokens

	if tokens <= limit {
		return nil
	}

	g.logger.Warn("context guard: token limit approaching, truncating history",
		"tokens", tokens,
		"limit", limit,
		"max_tokens", g.maxTokens,
	)

	session.Truncate(g.keepRecent)

	tokens = g.tokenCounter.CountMessages(session.Messages())
	if tokens <= limit {
		g.logger.Info("context guard: truncation resolved overflow",
			"tokens_after", tokens,
			"limit", limit,
		)
		return nil
	}

	g.logger.Error("context guard: context overflow",
		"tokens", tokens,
		"limit", limit,
	)
	return domain.ErrContextOverflow
}
