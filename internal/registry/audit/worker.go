package audit

import (
	"context"
	"log/slog"

	id "presentia/pkg/domain"
)

const defaultQueueDepth = 256

// ChannelStore takes audit appends off the request path: Append enqueues
// and returns, and a Worker drains the queue into the inner store. Reads go
// straight to the inner store, so an event becomes listable only once the
// worker has persisted it.
type ChannelStore struct {
	inner Store
	queue chan Event
}

// NewChannelStore wraps inner with a queue of the given depth; depth <= 0
// picks the default.
func NewChannelStore(inner Store, depth int) *ChannelStore {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	return &ChannelStore{inner: inner, queue: make(chan Event, depth)}
}

// Append enqueues the event. A full queue applies backpressure to the
// caller rather than dropping events.
func (s *ChannelStore) Append(ctx context.Context, event Event) error {
	select {
	case s.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelStore) ListByRegistration(ctx context.Context, regID id.RegistrationID) ([]Event, error) {
	return s.inner.ListByRegistration(ctx, regID)
}

// Events exposes the queue for a draining Worker.
func (s *ChannelStore) Events() <-chan Event { return s.queue }

// Worker drains enqueued audit events into a store. A failed append is
// logged and skipped so one poison event cannot stall the queue behind it.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run consumes until the context is cancelled and returns the context's
// error.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"registration_id", event.RegistrationID.String(),
					"action", string(event.Action),
					"error", err)
			}
		}
	}
}
