// Package idempotency replays the stored response of a request that carried the same
// Idempotency-Key.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingTTL bounds how long an unfinished claim blocks its key. A request that dies without
// completing or releasing its claim frees the key once this elapses.
const PendingTTL = 2 * time.Minute

// ErrInProgress means another request holding the same key has not completed yet.
var ErrInProgress = errors.New("idempotency: request with this key is in progress")

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       []byte `json:"body"`
}

type Store interface {
	// Claim reserves key for a new request and returns nil. When the key already holds a
	// completed response, that response is returned instead.
	Claim(ctx context.Context, key string) (*Response, error)
	Complete(ctx context.Context, key string, resp Response) error
	// Release drops a claim so the client can retry with the same key.
	Release(ctx context.Context, key string) error
}

type entry struct {
	Pending  bool      `json:"pending"`
	Response *Response `json:"response,omitempty"`
}

type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "idem:"
	}
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: prefix}
}

func pendingTTL(ttl time.Duration) time.Duration {
	return min(ttl, PendingTTL)
}

func (s *RedisStore) Claim(ctx context.Context, key string) (*Response, error) {
	pending, _ := json.Marshal(entry{Pending: true})
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, pending, pendingTTL(s.ttl)).Result()
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = s.rdb.SetNX(ctx, s.prefix+key, pending, pendingTTL(s.ttl)).Result()
		if err != nil {
			return nil, fmt.Errorf("claim idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}
		return nil, ErrInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	if e.Pending || e.Response == nil {
		return nil, ErrInProgress
	}
	return e.Response, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, resp Response) error {
	raw, err := json.Marshal(entry{Response: &resp})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, raw, s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// MemoryStore is the single-process fallback used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	entry
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}}
}

func (s *MemoryStore) Claim(_ context.Context, key string) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictExpired(now)
	if e, ok := s.entries[key]; ok {
		if e.Pending || e.Response == nil {
			return nil, ErrInProgress
		}
		resp := *e.Response
		return &resp, nil
	}
	s.entries[key] = memoryEntry{entry: entry{Pending: true}, expiresAt: now.Add(pendingTTL(s.ttl))}
	return nil, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{entry: entry{Response: &resp}, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) evictExpired(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
