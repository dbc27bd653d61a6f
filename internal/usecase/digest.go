package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"arxiv-scholar/internal/domain"
)

// digestRefreshTimeout bounds a single refresh pass across all topics.
const digestRefreshTimeout = 5 * time.Minute

// Digest periodically re-runs the saved topic searches and persists any new
// papers, so stored topics stay fresh without user interaction.
type Digest struct {
	searcher domain.PaperSearcher
	store    domain.PaperStore
	retrier  *Retrier
	bus      domain.EventBus // optional
	logger   *slog.Logger
	cron     *cron.Cron
	perTopic int
}

// NewDigest creates a digest scheduler.
func NewDigest(searcher domain.PaperSearcher, store domain.PaperStore, retrier *Retrier, bus domain.EventBus, logger *slog.Logger) *Digest {
	return &Digest{
		searcher: searcher,
		store:    store,
		retrier:  retrier,
		bus:      bus,
		logger:   logger,
		cron:     cron.New(),
		perTopic: 10,
	}
}

// Start schedules the refresh job with the given cron spec and starts the
// scheduler. Returns an error if the cron expression does not parse.
func (d *Digest) Start(schedule string) error {
	if _, err := d.cron.AddFunc(schedule, d.runOnce); err != nil {
		return fmt.Errorf("digest: bad schedule %q: %w", schedule, err)
	}
	d.cron.Start()
	d.logger.Info("digest scheduler started", "schedule", schedule)
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (d *Digest) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
}

func (d *Digest) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), digestRefreshTimeout)
	defer cancel()
	if err := d.Refresh(ctx); err != nil {
		d.logger.Error("digest refresh failed", "error", err)
	}
}

// Refresh re-runs the search for every saved topic and persists the results.
// Individual topic failures are logged and skipped; the pass continues.
func (d *Digest) Refresh(ctx context.Context) error {
	topics, err := d.store.ListTopics()
	if err != nil {
		return domain.WrapOp("Digest.Refresh", err)
	}

	refreshed := 0
	for _, slug := range topics {
		topic := strings.ReplaceAll(slug, "_", " ")

		var papers []domain.Paper
		err := d.retrier.Do(ctx, "digest.search", func(ctx context.Context) error {
			var serr error
			papers, serr = d.searcher.Search(ctx, domain.PaperSearchRequest{
				Topic:      topic,
				MaxResults: d.perTopic,
				SortBy:     "date",
			})
			return serr
		})
		if err != nil {
			d.logger.Warn("digest: topic refresh failed", "topic", slug, "error", err)
			continue
		}

		if err := d.store.SavePapers(topic, papers); err != nil {
			d.logger.Warn("digest: save failed", "topic", slug, "error", err)
			continue
		}
		refreshed++

		if d.bus != nil {
			d.bus.Publish(ctx, domain.Event{
				Type:      domain.EventPapersSaved,
				Timestamp: time.Now(),
			})
		}
	}

	d.logger.Info("digest refresh complete", "topics", len(topics), "refreshed", refreshed)
	if d.bus != nil {
		d.bus.Publish(ctx, domain.Event{
			Type:      domain.EventDigestFired,
			Timestamp: time.Now(),
		})
	}
	return nil
}
