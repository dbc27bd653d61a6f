package eventbus

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"arxiv-scholar/internal/domain"
)

// entry pairs a handler with the token its unsubscribe function removes.
type entry struct {
	id uint64
	fn domain.EventHandler
}

// Bus fans events out to in-process subscribers. Every handler runs on its
// own goroutine, so a slow or panicking handler cannot stall a publisher.
type Bus struct {
	mu     sync.RWMutex
	byType map[domain.EventType][]entry
	all    []entry
	nextID atomic.Uint64
	logger *slog.Logger
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		byType: make(map[domain.EventType][]entry),
		logger: logger,
	}
}

// Publish delivers the event to subscribers of its type and to all-event
// subscribers. Publishing after Close is a no-op.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	// Snapshot under the read lock; handlers may themselves subscribe.
	b.mu.RLock()
	targets := make([]entry, 0, len(b.byType[event.Type])+len(b.all))
	targets = append(targets, b.byType[event.Type]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, e := range targets {
		b.invoke(ctx, event, e)
	}
}

func (b *Bus) invoke(ctx context.Context, event domain.Event, e entry) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					"event", string(event.Type),
					"panic", r,
				)
			}
		}()
		e.fn(ctx, event)
	}()
}

// Subscribe registers a handler for one event type. The returned function
// removes the subscription.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.byType[eventType] = append(b.byType[eventType], entry{id: id, fn: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[eventType] = slices.DeleteFunc(b.byType[eventType], func(e entry) bool {
			return e.id == id
		})
	}
}

// SubscribeAll registers a handler that receives every event. The returned
// function removes the subscription.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.all = append(b.all, entry{id: id, fn: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = slices.DeleteFunc(b.all, func(e entry) bool {
			return e.id == id
		})
	}
}

// Close stops accepting publishes and waits for in-flight handlers to
// finish. Safe to call more than once.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.wg.Wait()
}
