package tool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"arxiv-scholar/internal/domain"
)

// GetPaperTool looks up a previously saved paper by its arXiv ID.
type GetPaperTool struct {
	store  domain.PaperStore
	logger *slog.Logger
}

func NewGetPaperTool(store domain.PaperStore, logger *slog.Logger) *GetPaperTool {
	return &GetPaperTool{store: store, logger: logger}
}

func (t *GetPaperTool) Name() string { return "get_paper" }

func (t *GetPaperTool) Description() string {
	return "Get the full details of a saved paper, including its abstract, by arXiv ID. Only papers found by a previous search are available."
}

func (t *GetPaperTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"article_id": {
					"type": "string",
					"description": "arXiv ID, e.g. '2301.07041v2'"
				}
			},
			"required": ["article_id"]
		}`),
	}
}

type getPaperParams struct {
	ArticleID string `json:"article_id"`
}

func (t *GetPaperTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.Name(), t.logger, params,
		func(ctx context.Context, span trace.Span, p getPaperParams) (any, error) {
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
			return paper, nil
		})
}
