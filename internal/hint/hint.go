// Package hint persists the last known ledger count between client runs. The value is advisory only: clients must
// reconcile it against a live count before trusting it.
package hint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the single, identity independent key the count is stored under.
const DefaultKey = "txledger:transaction_count"

// MemStore keeps the hint in memory, for tests and for clients running without persistence.
type MemStore struct {
	mu    sync.Mutex
	count uint64
	set   bool
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load(_ context.Context) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.set, nil
}

func (s *MemStore) Save(_ context.Context, count uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count, s.set = count, true
	return nil
}

// RedisStore keeps the hint in redis.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisStore stores the hint under key, which defaults to DefaultKey. A zero ttl keeps it forever.
func NewRedisStore(rdb *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) (uint64, bool, error) {
	val, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get count hint: %w", err)
	}

	count, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("count hint %q is not a number: %w", val, err)
	}
	return count, true, nil
}

func (s *RedisStore) Save(ctx context.Context, count uint64) error {
	err := s.rdb.Set(ctx, s.key, strconv.FormatUint(count, 10), s.ttl).Err()
	if err != nil {
		return fmt.Errorf("set count hint: %w", err)
	}
	return nil
}
