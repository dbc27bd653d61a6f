package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"arxiv-scholar/internal/domain"
)

const explainPrompt = `Explain the following research paper like the reader is a smart 10-year-old. Use simple words, short sentences and a friendly tone. Cover three things: what problem the researchers had, what they built, and why it is cool.

Title: %s

Abstract:
%s`

var (
	problemKeywords = []string{"problem", "challenge", "difficult", "limitation", "however", "struggle", "fail", "costly", "expensive", "slow"}
	builtKeywords   = []string{"we propose", "we present", "we introduce", "we develop", "we build", "method", "approach", "system", "framework", "model", "algorithm"}
	coolKeywords    = []string{"improve", "faster", "better", "outperform", "state-of-the-art", "first", "results", "achieve", "significant", "enables"}
)

// ExplainPaperTool explains a saved paper in kid-friendly language.
// It asks the LLM first and falls back to a keyword heuristic that assembles
// the explanation from the abstract's own sentences.
type ExplainPaperTool struct {
	store    domain.PaperStore
	provider domain.LLMProvider
	model    string
	logger   *slog.Logger
}

// NewExplainPaperTool creates the explain_paper tool. The provider may be nil.
func NewExplainPaperTool(store domain.PaperStore, provider domain.LLMProvider, model string, logger *slog.Logger) *ExplainPaperTool {
	return &ExplainPaperTool{store: store, provider: provider, model: model, logger: logger}
}

func (t *ExplainPaperTool) Name() string { return "explain_paper" }

func (t *ExplainPaperTool) Description() string {
	return "Explain a saved paper in simple terms a 10-year-old could understand."
}

func (t *ExplainPaperTool) Schema() domain.ToolSchema {
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

type explainPaperParams struct {
	ArticleID string `json:"article_id"`
}

func (t *ExplainPaperTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.Name(), t.logger, params,
		func(ctx context.Context, span trace.Span, p explainPaperParams) (any, error) {
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
			if paper.Summary == "" {
				return ErrResult("paper %q has no abstract to explain", p.ArticleID)
			}

			explanation := t.llmExplanation(ctx, paper)
			if explanation == "" {
				explanation = ExplainSimply(paper.Title, paper.Summary)
			}
			return TextResult(explanation), nil
		})
}

func (t *ExplainPaperTool) llmExplanation(ctx context.Context, paper *domain.Paper) string {
	if t.provider == nil {
		return ""
	}

	resp, err := t.provider.Chat(ctx, domain.ChatRequest{
		Model: t.model,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: fmt.Sprintf(explainPrompt, paper.Title, paper.Summary)},
		},
	})
	if err != nil {
		t.logger.Warn("LLM explanation failed, falling back to heuristic",
			"paper", paper.ID, "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Message.Content)
}

// ExplainSimply builds a three-part kid-friendly explanation from the
// abstract's own sentences, picking the best match for each part by keyword.
// Positional fallbacks keep the sections filled when no keyword matches.
func ExplainSimply(title, abstract string) string {
	sentences := splitSentences(abstract)
	if len(sentences) == 0 {
		return ""
	}

	problem := bestSentence(sentences, problemKeywords)
	if problem == "" {
		problem = sentences[0]
	}
	built := bestSentence(sentences, builtKeywords)
	if built == "" && len(sentences) > 1 {
		built = sentences[len(sentences)/2]
	}
	cool := bestSentence(sentences, coolKeywords)
	if cool == "" {
		cool = sentences[len(sentences)-1]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here's %q in simple terms:\n\n", title)
	fmt.Fprintf(&b, "The Problem: %s\n\n", problem)
	if built != "" {
		fmt.Fprintf(&b, "What They Built: %s\n\n", built)
	}
	fmt.Fprintf(&b, "Why It's Cool: %s", cool)
	return b.String()
}

// bestSentence returns the sentence with the most keyword hits, or "" when
// nothing matches.
func bestSentence(sentences, keywords []string) string {
	best, bestScore := "", 0
	for _, s := range sentences {
		lower := strings.ToLower(s)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	return best
}
