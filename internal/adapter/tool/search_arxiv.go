package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"arxiv-scholar/internal/domain"
	"arxiv-scholar/internal/infra/tracer"
)

const (
	defaultResultCount    = 5
	maxResultCount        = 20
	defaultSearchCacheTTL = 15 * time.Minute
	searchCacheMaxSize    = 100
)

// rateLimitMessage is returned to the model instead of an error when arXiv
// throttles us. The wording steers the model away from an immediate retry,
// which would only extend the throttling window.
const rateLimitMessage = "arXiv is temporarily rate-limiting requests. The search results for '%s' are not available right now. Do NOT retry this tool -- instead, tell the user to try again in about 60 seconds."

// retrier re-runs a transient-failing operation with backoff.
type retrier interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

type searchCacheEntry struct {
	result    *domain.ToolResult
	expiresAt time.Time
}

// SearchArxivTool searches arXiv for papers on a topic and persists the hits.
type SearchArxivTool struct {
	searcher domain.PaperSearcher
	store    domain.PaperStore
	retrier  retrier
	bus      domain.EventBus
	logger   *slog.Logger
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]searchCacheEntry
}

// NewSearchArxivTool creates the search_arxiv tool. The store may be nil,
// in which case results are returned without being persisted. The bus may
// be nil to disable event publishing.
func NewSearchArxivTool(searcher domain.PaperSearcher, store domain.PaperStore, r retrier, bus domain.EventBus, logger *slog.Logger) *SearchArxivTool {
	return &SearchArxivTool{
		searcher: searcher,
		store:    store,
		retrier:  r,
		bus:      bus,
		logger:   logger,
		cacheTTL: defaultSearchCacheTTL,
		cache:    make(map[string]searchCacheEntry),
	}
}

// WithCacheTTL overrides how long identical searches are served from cache.
// Non-positive values keep the default.
func (t *SearchArxivTool) WithCacheTTL(ttl time.Duration) *SearchArxivTool {
	if ttl > 0 {
		t.cacheTTL = ttl
	}
	return t
}

func (t *SearchArxivTool) Name() string { return "search_arxiv" }

func (t *SearchArxivTool) Description() string {
	return "Search arXiv for research papers on a topic. Returns paper metadata including ID, title, authors, publication date and PDF link. Found papers are saved under the topic for later lookup."
}

func (t *SearchArxivTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"topic": {
					"type": "string",
					"description": "Search topic, e.g. 'quantum computing'"
				},
				"max_results": {
					"type": "integer",
					"description": "Number of papers to return (1-20, default 5)"
				},
				"sort_by": {
					"type": "string",
					"enum": ["relevance", "date", "updated"],
					"description": "Sort criterion (default relevance)"
				},
				"date_from": {
					"type": "string",
					"description": "Only papers published on or after this date (YYYY-MM-DD)"
				},
				"date_to": {
					"type": "string",
					"description": "Only papers published on or before this date (YYYY-MM-DD)"
				}
			},
			"required": ["topic"]
		}`),
	}
}

type searchArxivParams struct {
	Topic      string `json:"topic"`
	MaxResults int    `json:"max_results"`
	SortBy     string `json:"sort_by"`
	DateFrom   string `json:"date_from"`
	DateTo     string `json:"date_to"`
}

// searchPaper is the compact per-paper shape returned to the model. The
// abstract is omitted to keep tool results small.
type searchPaper struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Published string   `json:"published"`
	PDFURL    string   `json:"pdf_url"`
}

type searchResponse struct {
	Count   int           `json:"count"`
	Topic   string        `json:"topic"`
	Papers  []searchPaper `json:"papers,omitempty"`
	Message string        `json:"message,omitempty"`
}

func (t *SearchArxivTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.Name(), t.logger, params,
		func(ctx context.Context, span trace.Span, p searchArxivParams) (any, error) {
			if err := RequireField("topic", p.Topic); err != nil {
				return ErrResult("%v", err)
			}
			if err := ValidateEnum("sort_by", p.SortBy, "relevance", "date", "updated"); err != nil {
				return ErrResult("%v", err)
			}
			count := p.MaxResults
			if count == 0 {
				count = defaultResultCount
			}
			if count < 1 {
				count = 1
			}
			if count > maxResultCount {
				count = maxResultCount
			}

			from, err := parseDate(p.DateFrom)
			if err != nil {
				return ErrResult("invalid date_from: %v", err)
			}
			to, err := parseDate(p.DateTo)
			if err != nil {
				return ErrResult("invalid date_to: %v", err)
			}

			key := fmt.Sprintf("%s|%d|%s|%s|%s", p.Topic, count, p.SortBy, p.DateFrom, p.DateTo)
			if cached := t.getCached(key); cached != nil {
				span.SetAttributes(tracer.BoolAttr("cache.hit", true))
				return cached, nil
			}

			req := domain.PaperSearchRequest{
				Topic:      p.Topic,
				MaxResults: count,
				SortBy:     p.SortBy,
				From:       from,
				To:         to,
			}

			var papers []domain.Paper
			searchFn := func(ctx context.Context) (err error) {
				papers, err = t.searcher.Search(ctx, req)
				return err
			}
			if t.retrier != nil {
				err = t.retrier.Do(ctx, "search_arxiv", searchFn)
			} else {
				err = searchFn(ctx)
			}
			if err != nil {
				if errors.Is(err, domain.ErrRateLimit) {
					// Delivered as content, not as an error, so the model
					// relays the guidance instead of retrying. StopToolUse
					// ends the tool phase for the rest of the run.
					res, rerr := JSONResult(searchResponse{
						Count:   0,
						Topic:   p.Topic,
						Message: fmt.Sprintf(rateLimitMessage, p.Topic),
					})
					if rerr != nil {
						return nil, rerr
					}
					res.StopToolUse = true
					return res, nil
				}
				return nil, err
			}

			if t.store != nil {
				if err := t.store.SavePapers(p.Topic, papers); err != nil {
					t.logger.Warn("failed to persist search results",
						"topic", p.Topic, "error", err)
				} else if len(papers) > 0 {
					PublishToolEvent(ctx, t.bus, domain.EventPapersSaved, map[string]any{
						"topic": domain.TopicSlug(p.Topic),
						"count": len(papers),
					})
				}
			}

			out := make([]searchPaper, 0, len(papers))
			for _, paper := range papers {
				out = append(out, searchPaper{
					ID:        paper.ID,
					Title:     paper.Title,
					Authors:   paper.Authors,
					Published: paper.Published,
					PDFURL:    paper.PDFURL,
				})
			}

			result, rerr := JSONResult(searchResponse{
				Count:  len(out),
				Topic:  p.Topic,
				Papers: out,
			})
			if rerr != nil {
				return nil, rerr
			}
			t.putCache(key, result)
			return result, nil
		})
}

func (t *SearchArxivTool) getCached(key string) *domain.ToolResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(t.cache, key)
		return nil
	}
	return entry.result
}

func (t *SearchArxivTool) putCache(key string, result *domain.ToolResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Lazy eviction: drop expired entries once the cache grows past the cap.
	if len(t.cache) >= searchCacheMaxSize {
		now := time.Now()
		for k, e := range t.cache {
			if now.After(e.expiresAt) {
				delete(t.cache, k)
			}
		}
	}

	t.cache[key] = searchCacheEntry{
		result:    result,
		expiresAt: time.Now().Add(t.cacheTTL),
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
