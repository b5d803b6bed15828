package memorylimiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PaulFidika/demogate/ratelimit"
)

type window struct {
	// hits holds request times in Unix ms, oldest first.
	hits []int64
}

// Limiter is an in-memory sliding-window limiter for a single node.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]ratelimit.Limit
	windows map[string]*window
	now     func() time.Time
}

// New constructs a limiter with per-bucket limits; the "default" bucket
// covers names without their own entry.
func New(limits map[string]ratelimit.Limit) *Limiter {
	if limits == nil {
		limits = map[string]ratelimit.Limit{}
	}
	return &Limiter{
		limits:  limits,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records a hit for key in bucket unless the window is full.
// Denied attempts are not recorded.
func (l *Limiter) Allow(ctx context.Context, bucket, key string) (bool, error) {
	_ = ctx
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, errors.New("bucket and key required")
	}
	lim := ratelimit.Resolve(l.limits, bucket)
	nowMs := l.now().UnixMilli()
	start := nowMs - lim.Window.Milliseconds()
	k := ratelimit.Key(bucket, key)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[k]
	if !ok {
		w = &window{}
		l.windows[k] = w
	}
	i := 0
	for i < len(w.hits) && w.hits[i] <= start {
		i++
	}
	w.hits = w.hits[i:]

	if len(w.hits) >= lim.Limit {
		return false, nil
	}
	w.hits = append(w.hits, nowMs)
	return true, nil
}

// Prune drops windows with no hits left inside their period.
func (l *Limiter) Prune() int {
	nowMs := l.now().UnixMilli()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, w := range l.windows {
		bucket := ratelimit.BucketOf(k)
		lim := ratelimit.Resolve(l.limits, bucket)
		if len(w.hits) == 0 || w.hits[len(w.hits)-1] <= nowMs-lim.Window.Milliseconds() {
			delete(l.windows, k)
			n++
		}
	}
	return n
}
