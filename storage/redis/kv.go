package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is a Redis-backed session.Backend. Each write refreshes the key's TTL,
// so idle devices are evicted by Redis itself.
type KV struct {
	rdb   redis.UniversalClient
	keyNS string
	ttl   time.Duration
}

// NewKV creates a Redis key-value backend. An empty prefix stores keys as
// given; ttl <= 0 defaults to 30 days.
func NewKV(rdb redis.UniversalClient, keyPrefix string, ttl time.Duration) *KV {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &KV{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (s *KV) key(k string) string { return s.keyNS + k }

func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, s.key(key), value, s.ttl).Err()
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *KV) Del(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
