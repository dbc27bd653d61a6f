package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"arxiv-scholar/internal/domain"
)

// ListTopicsTool lists the topics papers have been saved under.
type ListTopicsTool struct {
	store  domain.PaperStore
	logger *slog.Logger
}

func NewListTopicsTool(store domain.PaperStore, logger *slog.Logger) *ListTopicsTool {
	return &ListTopicsTool{store: store, logger: logger}
}

func (t *ListTopicsTool) Name() string { return "list_topics" }

func (t *ListTopicsTool) Description() string {
	return "List all topics that papers have been saved under."
}

func (t *ListTopicsTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	}
}

type listTopicsParams struct{}

type topicEntry struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

func (t *ListTopicsTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.Name(), t.logger, params,
		func(ctx context.Context, span trace.Span, _ listTopicsParams) (any, error) {
			slugs, err := t.store.ListTopics()
			if err != nil {
				return nil, err
			}

			topics := make([]topicEntry, 0, len(slugs))
			for _, slug := range slugs {
				topics = append(topics, topicEntry{Slug: slug, Title: TopicTitle(slug)})
			}
			return map[string]any{
				"count":  len(topics),
				"topics": topics,
			}, nil
		})
}

// TopicTitle turns a storage slug back into display form, e.g.
// "quantum_computing" becomes "Quantum Computing".
func TopicTitle(slug string) string {
	words := strings.Split(slug, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
