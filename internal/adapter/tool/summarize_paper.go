package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"arxiv-scholar/internal/domain"
)

const summarizePrompt = `Summarize the following research paper abstract in 5-8 clear sentences. Focus on what problem the paper solves, what approach it takes, and what the main results are. Avoid jargon where possible.

Title: %s

Abstract:
%s`

// keyPhrases mark sentences that typically carry the contribution of a paper.
// Each match adds one point during extractive scoring.
var keyPhrases = []string{
	"we propose",
	"we present",
	"we introduce",
	"we show",
	"we demonstrate",
	"our results",
	"our approach",
	"our method",
	"novel",
	"state-of-the-art",
	"outperform",
	"significant",
}

// SummarizePaperTool produces a plain-language summary of a saved paper.
// It asks the LLM first and falls back to extractive summarization when the
// provider is unavailable.
type SummarizePaperTool struct {
	store    domain.PaperStore
	provider domain.LLMProvider
	model    string
	logger   *slog.Logger
}

// NewSummarizePaperTool creates the summarize_paper tool. The provider may be
// nil, in which case only extractive summarization is used.
func NewSummarizePaperTool(store domain.PaperStore, provider domain.LLMProvider, model string, logger *slog.Logger) *SummarizePaperTool {
	return &SummarizePaperTool{store: store, provider: provider, model: model, logger: logger}
}

func (t *SummarizePaperTool) Name() string { return "summarize_paper" }

func (t *SummarizePaperTool) Description() string {
	return "Summarize a saved paper's abstract in 5-8 plain-language sentences."
}

func (t *SummarizePaperTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"article_id": {
					"type": "string",
					"description": "arXiv ID of a previously searched paper"
				}
			},
			"required": ["article_id"]
		}`),
	}
}

type summarizePaperParams struct {
	ArticleID string `json:"article_id"`
}

func (t *SummarizePaperTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.Name(), t.logger, params,
		func(ctx context.Context, span trace.Span, p summarizePaperParams) (any, error) {
			if err := RequireField("article_id", p.ArticleID); err != nil {
				return ErrResult("%v", err)
			}

			paper, err := t.store.GetPaper(p.ArticleID)
			if err != nil {
				if errors.Is(err, domain.ErrPaperNotFound) {
					return ErrResult("No saved paper with ID %q. Try searching first with search_arxiv.", p.ArticleID)
				}
				return nil, err
			}

			summary := t.llmSummary(ctx, paper)
			if summary == "" {
				summary = ExtractKeySentences(paper.Summary, 5)
			}
			if summary == "" {
				return ErrResult("paper %q has no abstract to summarize", p.ArticleID)
			}

			return TextResult(fmt.Sprintf("Summary of %q:\n\n%s", paper.Title, summary)), nil
		})
}

// llmSummary asks the provider for a summary. Returns "" on any failure so
// the caller can fall back to extraction.
func (t *SummarizePaperTool) llmSummary(ctx context.Context, paper *domain.Paper) string {
	if t.provider == nil || paper.Summary == "" {
		return ""
	}

	resp, err := t.provider.Chat(ctx, domain.ChatRequest{
		Model: t.model,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: fmt.Sprintf(summarizePrompt, paper.Title, paper.Summary)},
		},
	})
	if err != nil {
		t.logger.Warn("LLM summary failed, falling back to extraction",
			"paper", paper.ID, "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Message.Content)
}

// ExtractKeySentences picks the max most informative sentences from text.
// Sentences are scored by position (first and last sentences of an abstract
// usually state the problem and the result) and by contribution phrases, then
// the winners are emitted in their original order.
func ExtractKeySentences(text string, max int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) <= max {
		return strings.Join(sentences, " ")
	}

	type scored struct {
		index int
		score int
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		score := 0
		if i == 0 {
			score += 3
		}
		if i == len(sentences)-1 {
			score += 2
		}
		lower := strings.ToLower(s)
		for _, phrase := range keyPhrases {
			if strings.Contains(lower, phrase) {
				score++
			}
		}
		ranked[i] = scored{index: i, score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	top := ranked[:max]
	sort.Slice(top, func(i, j int) bool { return top[i].index < top[j].index })

	out := make([]string, 0, max)
	for _, s := range top {
		out = append(out, sentences[s.index])
	}
	return strings.Join(out, " ")
}

// splitSentences breaks text on sentence-ending punctuation. Good enough for
// abstract prose; it does not try to handle abbreviations.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); len(s) > 1 {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); len(s) > 1 {
		sentences = append(sentences, s)
	}
	return sentences
}
