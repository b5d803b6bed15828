// Package ratelimit holds the limits shared by the memory and Redis limiters
// that throttle gate endpoints per device.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Bucket names used by the HTTP adapter.
const (
	BucketConsume  = "demo_consume"
	BucketGenerate = "generate"
	BucketSession  = "demo_session"
	BucketDefault  = "default"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter decides whether key may make another request in bucket.
type Limiter interface {
	Allow(ctx context.Context, bucket, key string) (bool, error)
}

// Defaults are conservative per-device limits for the gate endpoints.
func Defaults() map[string]Limit {
	return map[string]Limit{
		BucketConsume:  {Limit: 10, Window: time.Minute},
		BucketGenerate: {Limit: 5, Window: time.Minute},
		BucketSession:  {Limit: 60, Window: time.Minute},
		BucketDefault:  {Limit: 100, Window: time.Minute},
	}
}

// Resolve picks the limit for bucket, falling back to "default" and then
// to 100 per minute.
func Resolve(limits map[string]Limit, bucket string) Limit {
	if v, ok := limits[bucket]; ok {
		return v
	}
	if v, ok := limits[BucketDefault]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

// Key builds the storage key for bucket and caller key.
func Key(bucket, key string) string { return "rl:" + bucket + ":" + key }

// BucketOf extracts the bucket from a key built by Key.
func BucketOf(k string) string {
	k = strings.TrimPrefix(k, "rl:")
	if i := strings.IndexByte(k, ':'); i >= 0 {
		return k[:i]
	}
	return k
}
