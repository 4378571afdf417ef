package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/hedgeline/engine/pkg/api"
)

// DefaultKeyPrefix namespaces the engine's keys within a shared Redis
const DefaultKeyPrefix = "hedgeline"

// RedisStore is a Store backed by Redis, with each record sequence held
// as a single JSON value. Merges are serialized through a local mutex so
// concurrent writers cannot interleave read-merge-write cycles.
type RedisStore struct {
	client *redis.Client
	prefix string
	mu     sync.Mutex
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis instance described by a redis:// URL
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		prefix: DefaultKeyPrefix,
	}, nil
}

// Get retrieves the records cached for a category and key
func (s *RedisStore) Get(
	ctx context.Context, cat Category, key string,
) ([]api.Record, error) {
	data, err := s.client.Get(ctx, s.keyFor(cat, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var recs []api.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Set merges records into the sequence cached for a category and key
func (s *RedisStore) Set(
	ctx context.Context, cat Category, key string, recs []api.Record,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Get(ctx, cat, key)
	if err != nil {
		return err
	}
	merged, err := Merge(cat, existing, recs)
	if err != nil {
		return err
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keyFor(cat, key), data, 0).Err()
}

// Ping verifies the Redis connection is usable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) keyFor(cat Category, key string) string {
	return s.prefix + ":" + string(cat) + ":" + key
}
