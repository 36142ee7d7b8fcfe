package audit

import (
	"context"
	"sync"
	"time"

	id "presentia/pkg/domain"
)

// Store is the append-only persistence contract for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRegistration(ctx context.Context, regID id.RegistrationID) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and writes
// through the store so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, regID id.RegistrationID) ([]Event, error) {
	return p.store.ListByRegistration(ctx, regID)
}

// InMemoryStore keeps events ordered per registration. Intended for tests and
// single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.RegistrationID][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.RegistrationID][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RegistrationID] = append(s.events[event.RegistrationID], event)
	return nil
}

func (s *InMemoryStore) ListByRegistration(_ context.Context, regID id.RegistrationID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[regID]
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}
