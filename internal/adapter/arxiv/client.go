package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"arxiv-scholar/internal/domain"
	"arxiv-scholar/internal/infra/config"
	"arxiv-scholar/internal/infra/tracer"
)

// maxFeedBody is the maximum Atom feed size we read from the arXiv API.
const maxFeedBody = 10 * 1024 * 1024 // 10 MB

// When a date range is requested we over-fetch and filter locally, because
// the upstream submittedDate filter is unreliable.
const (
	fetchMultiplier = 3
	maxFetchCount   = 25
)

// sortCriteria maps our sort names to arXiv API sortBy values.
var sortCriteria = map[string]string{
	"relevance": "relevance",
	"date":      "submittedDate",
	"updated":   "lastUpdatedDate",
}

// Client implements domain.PaperSearcher against the arXiv Atom query API.
type Client struct {
	baseURL    string
	maxResults int
	client     *http.Client
	logger     *slog.Logger
}

// NewClient creates an arXiv search client.
func NewClient(cfg config.ArXivConfig, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://export.arxiv.org/api/query"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 25
	}

	return &Client{
		baseURL:    baseURL,
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Search implements domain.PaperSearcher.
func (c *Client) Search(ctx context.Context, req domain.PaperSearchRequest) ([]domain.Paper, error) {
	ctx, span := tracer.StartSpan(ctx, "arxiv.search",
		trace.WithAttributes(
			tracer.StringAttr("arxiv.topic", req.Topic),
			tracer.IntAttr("arxiv.max_results", req.MaxResults),
		),
	)
	defer span.End()

	maxResults := req.MaxResults
	if maxResults <= 0 || maxResults > c.maxResults {
		maxResults = c.maxResults
	}

	hasDateFilter := !req.From.IsZero() || !req.To.IsZero()
	fetchCount := maxResults
	if hasDateFilter {
		fetchCount = maxResults * fetchMultiplier
	}
	if fetchCount > maxFetchCount {
		fetchCount = maxFetchCount
	}

	sortBy, ok := sortCriteria[req.SortBy]
	if !ok {
		sortBy = "relevance"
	}

	q := url.Values{}
	q.Set("search_query", "all:"+req.Topic)
	q.Set("start", "0")
	q.Set("max_results", fmt.Sprintf("%d", fetchCount))
	q.Set("sortBy", sortBy)
	q.Set("sortOrder", "descending")

	feed, err := c.fetchFeed(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, entryToPaper(entry, req.Topic))
	}

	fetched := len(papers)
	if hasDateFilter {
		papers = filterByDate(papers, req.From, req.To)
	}
	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}

	tracer.SetOK(span)
	c.logger.Debug("arxiv search completed",
		"topic", req.Topic,
		"fetched", fetched,
		"returned", len(papers),
	)

	return papers, nil
}

func (c *Client) fetchFeed(ctx context.Context, rawURL string) (*atomFeed, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, mapStatusError(httpResp.StatusCode, body)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("unmarshal feed: %w", err)
	}

	return &feed, nil
}

// mapStatusError maps an arXiv API status code to a domain error so the
// Retrier and the tool-level classifier treat it correctly.
func mapStatusError(statusCode int, body []byte) error {
	detail := fmt.Sprintf("API error %d: %s", statusCode, strings.TrimSpace(string(body)))

	switch {
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimit, detail)
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", domain.ErrProviderError, detail)
	default:
		return fmt.Errorf("%s", detail)
	}
}

// --- Atom feed wire types ---

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

func entryToPaper(entry atomEntry, topic string) domain.Paper {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, collapseWhitespace(a.Name))
	}

	pdfURL := ""
	for _, l := range entry.Links {
		if l.Title == "pdf" {
			pdfURL = l.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = strings.Replace(entry.ID, "/abs/", "/pdf/", 1)
	}

	published := entry.Published
	if len(published) > 10 {
		published = published[:10] // YYYY-MM-DD
	}

	return domain.Paper{
		ID:        shortID(entry.ID),
		Title:     collapseWhitespace(entry.Title),
		Authors:   authors,
		Summary:   collapseWhitespace(entry.Summary),
		PDFURL:    pdfURL,
		Published: published,
		Topic:     topic,
	}
}

// shortID extracts the arXiv ID from an Atom entry id URL,
// e.g. "http://arxiv.org/abs/2301.00001v1" -> "2301.00001v1".
func shortID(entryID string) string {
	if idx := strings.LastIndex(entryID, "/abs/"); idx >= 0 {
		return entryID[idx+len("/abs/"):]
	}
	return entryID
}

// collapseWhitespace normalizes the newline-wrapped text arXiv returns in
// titles and abstracts.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func filterByDate(papers []domain.Paper, from, to time.Time) []domain.Paper {
	filtered := make([]domain.Paper, 0, len(papers))
	for _, p := range papers {
		pub, err := time.Parse("2006-01-02", p.Published)
		if err != nil {
			continue
		}
		if !from.IsZero() && pub.Before(from) {
			continue
		}
		if !to.IsZero() && pub.After(to) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

var _ domain.PaperSearcher = (*Client)(nil)
