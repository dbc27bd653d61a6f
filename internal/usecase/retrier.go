package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"arxiv-scholar/internal/domain"
)

// retryDelays is the fixed wait schedule. Attempt i waits delays[i] after a
// transient failure, the last attempt included, so the full schedule elapses
// before the call gives up.
var retryDelays = []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second}

// Retrier wraps calls against rate-limited upstreams with a fixed linear
// retry schedule. Transient errors (rate limits, 5xx, network timeouts) are
// retried; permanent errors (auth, malformed request) propagate immediately.
type Retrier struct {
	delays     []time.Duration
	classifier *ErrorClassifier
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier with the standard schedule.
func NewRetrier(classifier *ErrorClassifier, logger *slog.Logger) *Retrier {
	return &Retrier{
		delays:     retryDelays,
		classifier: classifier,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attempts returns the total number of attempts the retrier will make.
func (r *Retrier) Attempts() int { return len(r.delays) }

// Do runs fn up to len(delays) times. Every transient failure waits its
// slot in the schedule before the loop moves on, including the final one,
// so callers observe the full backoff window before the error surfaces.
// Context cancellation aborts the wait immediately. When the budget is
// exhausted the last error is returned carrying domain.ErrRateLimit so
// callers can classify it.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < len(r.delays); attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		classified := r.classifier.Classify(err)
		if classified.Category != ErrorCategoryRetryable {
			return err
		}

		delay := r.delays[attempt]
		r.logger.Info("upstream call failed, backing off",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w (last: %w)",
		op, len(r.delays), domain.ErrRateLimit, lastErr)
}
