package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/pkg/redis"
)

// ErrNotFound is returned when no report is stored for the request
var ErrNotFound = errors.New("report not found")

// Store keeps built report contexts for the HTTP surface
type Store interface {
	Save(ctx context.Context, rc *Context) error
	Latest(ctx context.Context) (*Context, error)
	Get(ctx context.Context, asOf time.Time) (*Context, error)
}

// NewStore returns a Redis-backed store when the cache is enabled,
// otherwise an in-process store.
func NewStore(cache *redis.Cache) Store {
	if cache.Enabled() {
		return NewRedisStore(cache, redis.TTLWeek)
	}
	return NewMemoryStore()
}

// MemoryStore keeps contexts in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	byDate map[string]*Context
	latest *Context
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byDate: make(map[string]*Context)}
}

// Save stores a context. Contexts are immutable so no copy is taken.
func (s *MemoryStore) Save(ctx context.Context, rc *Context) error {
	if rc == nil {
		return fmt.Errorf("nil report context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDate[rc.AsOf().Format(contracts.DateLayout)] = rc
	if s.latest == nil || !rc.AsOf().Before(s.latest.AsOf()) {
		s.latest = rc
	}
	return nil
}

// Latest returns the context with the most recent date
func (s *MemoryStore) Latest(ctx context.Context) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNotFound
	}
	return s.latest, nil
}

// Get returns the context for a date
func (s *MemoryStore) Get(ctx context.Context, asOf time.Time) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.byDate[asOf.Format(contracts.DateLayout)]
	if !ok {
		return nil, ErrNotFound
	}
	return rc, nil
}

// RedisStore keeps contexts as JSON in Redis
type RedisStore struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(cache *redis.Cache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: cache, ttl: ttl}
}

// Save writes the dated entry and moves the latest pointer unless a
// later date is already stored
func (s *RedisStore) Save(ctx context.Context, rc *Context) error {
	if rc == nil {
		return fmt.Errorf("nil report context")
	}
	if err := s.cache.Set(ctx, redis.ReportKey(rc.AsOf().Format(contracts.DateLayout)), rc, s.ttl); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	current, err := s.Latest(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if current != nil && rc.AsOf().Before(current.AsOf()) {
		return nil
	}
	if err := s.cache.Set(ctx, redis.LatestReportKey, rc, s.ttl); err != nil {
		return fmt.Errorf("failed to store latest report: %w", err)
	}
	return nil
}

// Latest returns the context with the most recent date
func (s *RedisStore) Latest(ctx context.Context) (*Context, error) {
	return s.load(ctx, redis.LatestReportKey)
}

// Get returns the context for a date
func (s *RedisStore) Get(ctx context.Context, asOf time.Time) (*Context, error) {
	return s.load(ctx, redis.ReportKey(asOf.Format(contracts.DateLayout)))
}

func (s *RedisStore) load(ctx context.Context, key string) (*Context, error) {
	var rc Context
	found, err := s.cache.Get(ctx, key, &rc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &rc, nil
}
