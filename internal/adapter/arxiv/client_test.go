package arxiv

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arxiv-scholar/internal/domain"
	"arxiv-scholar/internal/infra/config"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query Results</title>
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <title>Quantum Error Correction
  with Surface Codes</title>
    <summary>  We present a new approach
  to quantum error correction.  </summary>
    <published>2023-01-02T18:00:00Z</published>
    <author><name>Alice Example</name></author>
    <author><name>Bob Sample</name></author>
    <link href="http://arxiv.org/abs/2301.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2301.00001v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2212.09999v2</id>
    <title>Topological Qubits</title>
    <summary>A survey of topological qubits.</summary>
    <published>2022-12-15T09:30:00Z</published>
    <author><name>Carol Test</name></author>
    <link href="http://arxiv.org/abs/2212.09999v2" rel="alternate" type="text/html"/>
  </entry>
</feed>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.ArXivConfig{
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		MaxResults: 25,
	}, slog.Default())
}

func TestSearchParsesFeed(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(sampleFeed))
	})

	papers, err := c.Search(context.Background(), domain.PaperSearchRequest{
		Topic:      "quantum computing",
		MaxResults: 5,
		SortBy:     "relevance",
	})
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, "2301.00001v1", p.ID)
	assert.Equal(t, "Quantum Error Correction with Surface Codes", p.Title)
	assert.Equal(t, []string{"Alice Example", "Bob Sample"}, p.Authors)
	assert.Equal(t, "We present a new approach to quantum error correction.", p.Summary)
	assert.Equal(t, "http://arxiv.org/pdf/2301.00001v1", p.PDFURL)
	assert.Equal(t, "2023-01-02", p.Published)
	assert.Equal(t, "quantum computing", p.Topic)

	assert.Contains(t, gotQuery, "search_query=all%3Aquantum+computing")
	assert.Contains(t, gotQuery, "max_results=5")
	assert.Contains(t, gotQuery, "sortBy=relevance")
}

func TestSearchSortByMapping(t *testing.T) {
	tests := []struct {
		sortBy string
		want   string
	}{
		{"relevance", "relevance"},
		{"date", "submittedDate"},
		{"updated", "lastUpdatedDate"},
		{"bogus", "relevance"},
	}

	for _, tt := range tests {
		t.Run(tt.sortBy, func(t *testing.T) {
			var gotSort string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotSort = r.URL.Query().Get("sortBy")
				w.Write([]byte(sampleFeed))
			})

			_, err := c.Search(context.Background(), domain.PaperSearchRequest{
				Topic: "x", MaxResults: 1, SortBy: tt.sortBy,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, gotSort)
		})
	}
}

func TestSearchDateFilterOverFetchesAndFiltersLocally(t *testing.T) {
	var gotMax string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("max_results")
		w.Write([]byte(sampleFeed))
	})

	from, _ := time.Parse("2006-01-02", "2023-01-01")
	papers, err := c.Search(context.Background(), domain.PaperSearchRequest{
		Topic:      "quantum",
		MaxResults: 5,
		From:       from,
	})
	require.NoError(t, err)

	// 5 * 3 = 15 fetched; only the 2023 entry survives the filter.
	assert.Equal(t, "15", gotMax)
	require.Len(t, papers, 1)
	assert.Equal(t, "2301.00001v1", papers[0].ID)
}

func TestSearchDateFilterCapsFetchCount(t *testing.T) {
	var gotMax string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("max_results")
		w.Write([]byte(sampleFeed))
	})

	to, _ := time.Parse("2006-01-02", "2023-06-01")
	_, err := c.Search(context.Background(), domain.PaperSearchRequest{
		Topic:      "quantum",
		MaxResults: 20,
		To:         to,
	})
	require.NoError(t, err)
	assert.Equal(t, "25", gotMax)
}

func TestSearchRateLimitMapsToSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	})

	_, err := c.Search(context.Background(), domain.PaperSearchRequest{Topic: "x", MaxResults: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimit))
}

func TestSearchServerErrorMapsToSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Search(context.Background(), domain.PaperSearchRequest{Topic: "x", MaxResults: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderError))
}

func TestSearchBadXML(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<feed><entry></feed>"))
	})

	_, err := c.Search(context.Background(), domain.PaperSearchRequest{Topic: "x", MaxResults: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal feed")
}

func TestSearchPDFURLFallback(t *testing.T) {
	feed := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.12345v1</id>
    <title>No PDF Link</title>
    <summary>s</summary>
    <published>2024-01-20T00:00:00Z</published>
    <author><name>D</name></author>
  </entry>
</feed>`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	})

	papers, err := c.Search(context.Background(), domain.PaperSearchRequest{Topic: "x", MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "http://arxiv.org/pdf/2401.12345v1", papers[0].PDFURL)
}

func TestSearchContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, domain.PaperSearchRequest{Topic: "x", MaxResults: 1})
	require.Error(t, err)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "2301.00001v1", shortID("http://arxiv.org/abs/2301.00001v1"))
	assert.Equal(t, "raw-id", shortID("raw-id"))
}
