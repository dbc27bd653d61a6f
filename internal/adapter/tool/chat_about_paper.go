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

const chatSystemPrompt = `You are a friendly teacher who loves explaining science to curious kids. You are discussing this research paper:

Title: %s
Authors: %s
Published: %s

Abstract:
%s

Answer questions about this paper the way you would for a smart 10-year-old: simple words, short sentences, everyday comparisons. If the abstract does not contain the answer, say so honestly instead of guessing.`

// ChatAboutPaperTool answers a free-form question about a saved paper using
// the LLM with the paper's metadata embedded in the system prompt.
type ChatAboutPaperTool struct {
	store    domain.PaperStore
	provider domain.LLMProvider
	model    string
	logger   *slog.Logger
}

func NewChatAboutPaperTool(store domain.PaperStore, provider domain.LLMProvider, model string, logger *slog.Logger) *ChatAboutPaperTool {
	return &ChatAboutPaperTool{store: store, provider: provider, model: model, logger: logger}
}

func (t *ChatAboutPaperTool) Name() string { return "chat_about_paper" }

func (t *ChatAboutPaperTool) Description() string {
	return "Ask a question about a saved paper and get a kid-friendly answer grounded in its abstract."
}

func (t *ChatAboutPaperTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"article_id": {
					"type": "string",
					"description": "arXiv ID of a previously searched paper"
				},
				"question": {
					"type": "string",
					"description": "The question to answer about the paper"
				}
			},
			"required": ["article_id", "question"]
		}`),
	}
}

type chatAboutPaperParams struct {
	ArticleID string `json:"article_id"`
	Question  string `json:"question"`
}

func (t *ChatAboutPaperTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.Name(), t.logger, params,
		func(ctx context.Context, span trace.Span, p chatAboutPaperParams) (any, error) {
			if err := ValidateAll(
				RequireField("article_id", p.ArticleID),
				RequireField("question", p.Question),
			); err != nil {
				return ErrResult("%v", err)
			}
			if t.provider == nil {
				return ErrResult("no LLM provider configured, chat is unavailable")
			}

			paper, err := t.store.GetPaper(p.ArticleID)
			if err != nil {
				if errors.Is(err, domain.ErrPaperNotFound) {
					return ErrResult("No saved paper with ID %q. Try searching first with search_arxiv.", p.ArticleID)
				}
				return nil, err
			}

			system := fmt.Sprintf(chatSystemPrompt,
				paper.Title,
				strings.Join(paper.Authors, ", "),
				paper.Published,
				paper.Summary,
			)

			resp, err := t.provider.Chat(ctx, domain.ChatRequest{
				Model: t.model,
				Messages: []domain.Message{
					{Role: domain.RoleSystem, Content: system},
					{Role: domain.RoleUser, Content: p.Question},
				},
			})
			if err != nil {
				return nil, err
			}
			return TextResult(strings.TrimSpace(resp.Message.Content)), nil
		})
}
