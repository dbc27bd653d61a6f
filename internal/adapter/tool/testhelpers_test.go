package tool

import (
	"context"
	"log/slog"
	"sync"

	"arxiv-scholar/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.Default()
}

type fakeSearcher struct {
	mu       sync.Mutex
	calls    int
	lastReq  domain.PaperSearchRequest
	papers   []domain.Paper
	err      error
	errUntil int // return err for the first errUntil calls, then succeed
}

func (f *fakeSearcher) Search(ctx context.Context, req domain.PaperSearchRequest) ([]domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil && (f.errUntil == 0 || f.calls <= f.errUntil) {
		return nil, f.err
	}
	return f.papers, nil
}

type fakeStore struct {
	mu         sync.Mutex
	papers     map[string]domain.Paper
	topics     []string
	savedTopic string
	saveErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{papers: make(map[string]domain.Paper)}
}

func (f *fakeStore) SavePapers(topic string, papers []domain.Paper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedTopic = topic
	for _, p := range papers {
		p.Topic = domain.TopicSlug(topic)
		f.papers[p.ID] = p
	}
	return nil
}

func (f *fakeStore) GetPaper(id string) (*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.papers[id]
	if !ok {
		return nil, domain.ErrPaperNotFound
	}
	return &p, nil
}

func (f *fakeStore) ListTopics() ([]string, error) {
	return f.topics, nil
}

func (f *fakeStore) PapersByTopic(slug string) ([]domain.Paper, error) {
	var out []domain.Paper
	for _, p := range f.papers {
		if p.Topic == slug {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	lastReq domain.ChatRequest
	reply   string
	err     error
}

func (f *fakeProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResponse{
		Message: domain.Message{Role: domain.RoleAssistant, Content: f.reply},
	}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

// passRetrier runs the function once with no backoff.
type passRetrier struct {
	calls int
}

func (r *passRetrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	r.calls++
	return fn(ctx)
}

// tripleRetrier runs the function up to three times with no backoff.
type tripleRetrier struct{}

func (tripleRetrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

func samplePaper() domain.Paper {
	return domain.Paper{
		ID:      "2301.07041v1",
		Title:   "Attention Is All You Need, Again",
		Authors: []string{"Ada Lovelace", "Alan Turing"},
		Summary: "Transformers are hard to train at scale. We propose a simpler attention variant. " +
			"Our method cuts training cost in half. Experiments show it outperforms strong baselines. " +
			"These results suggest attention can be made much cheaper.",
		PDFURL:    "http://arxiv.org/pdf/2301.07041v1",
		Published: "2023-01-17",
		Topic:     "transformers",
	}
}
