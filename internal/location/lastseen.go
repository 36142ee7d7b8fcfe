package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	id "presentia/pkg/domain"
)

// InMemoryLastSeen is a process-local LastSeenStore for tests and
// single-instance deployments.
type InMemoryLastSeen struct {
	mu  sync.RWMutex
	obs map[id.OwnerID]Observation
}

func NewInMemoryLastSeen() *InMemoryLastSeen {
	return &InMemoryLastSeen{obs: make(map[id.OwnerID]Observation)}
}

func (s *InMemoryLastSeen) Get(_ context.Context, owner id.OwnerID) (*Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.obs[owner]
	if !ok {
		return nil, nil
	}
	return &obs, nil
}

func (s *InMemoryLastSeen) Put(_ context.Context, owner id.OwnerID, obs Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs[owner] = obs
	return nil
}

// RedisLastSeen shares last-seen observations across instances so the
// impossible-travel check holds when consecutive attempts land on different
// servers. Entries expire after ttl; a stale observation only weakens the
// check, never blocks a legitimate attempt.
type RedisLastSeen struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLastSeen(client redis.UniversalClient, ttl time.Duration) *RedisLastSeen {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisLastSeen{client: client, ttl: ttl}
}

func lastSeenKey(owner id.OwnerID) string {
	return "presentia:lastseen:" + owner.String()
}

func (s *RedisLastSeen) Get(ctx context.Context, owner id.OwnerID) (*Observation, error) {
	raw, err := s.client.Get(ctx, lastSeenKey(owner)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var obs Observation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return nil, fmt.Errorf("decode last-seen entry: %w", err)
	}
	return &obs, nil
}

func (s *RedisLastSeen) Put(ctx context.Context, owner id.OwnerID, obs Observation) error {
	raw, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("encode last-seen entry: %w", err)
	}
	if err := s.client.Set(ctx, lastSeenKey(owner), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
