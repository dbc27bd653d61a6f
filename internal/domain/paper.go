package domain

import (
	"context"
	"strings"
	"time"
)

// Paper holds the metadata of a single arXiv paper.
type Paper struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Summary   string   `json:"summary"`
	PDFURL    string   `json:"pdf_url"`
	Published string   `json:"published"` // YYYY-MM-DD
	Topic     string   `json:"topic"`
}

// PaperSearchRequest describes a search against the paper index.
type PaperSearchRequest struct {
	Topic      string
	MaxResults int
	SortBy     string // "relevance", "date", "updated"
	From       time.Time
	To         time.Time
}

// PaperSearcher finds papers matching a topic.
type PaperSearcher interface {
	Search(ctx context.Context, req PaperSearchRequest) ([]Paper, error)
}

// PaperStore persists searched papers grouped by topic.
type PaperStore interface {
	SavePapers(topic string, papers []Paper) error
	GetPaper(id string) (*Paper, error)
	ListTopics() ([]string, error)
	PapersByTopic(slug string) ([]Paper, error)
	Close() error
}

// TopicSlug normalizes a search topic into a storage key.
func TopicSlug(topic string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(topic)), " ", "_")
}
