package redislimiter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/PaulFidika/demogate/ratelimit"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter is a Redis-backed sliding window limiter using ZSETs, shared by
// every replica of the service.
type Limiter struct {
	rdb    redis.UniversalClient
	limits map[string]ratelimit.Limit
	now    func() time.Time
}

func New(rdb redis.UniversalClient, limits map[string]ratelimit.Limit) *Limiter {
	if limits == nil {
		limits = map[string]ratelimit.Limit{}
	}
	return &Limiter{rdb: rdb, limits: limits, now: time.Now}
}

// Allow adds a hit, trims the window and counts it in one transaction. A
// denied hit is removed again so it does not extend the block.
func (l *Limiter) Allow(ctx context.Context, bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, errors.New("bucket and key required")
	}
	lim := ratelimit.Resolve(l.limits, bucket)
	nowMs := l.now().UnixMilli()
	start := nowMs - lim.Window.Milliseconds()
	k := ratelimit.Key(bucket, key)
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(start, 10))
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(nowMs), Member: member})
	count := pipe.ZCard(ctx, k)
	pipe.Expire(ctx, k, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if count.Val() > int64(lim.Limit) {
		if err := l.rdb.ZRem(ctx, k, member).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}
