package memorystore

import (
	"context"
	"sync"
	"time"
)

// KV is an in-memory session.Backend with per-entry expiry.
// It is intended for single-node deployments and tests.
type KV struct {
	mu     sync.Mutex
	ttl    time.Duration
	data   map[string]entry
	closed chan struct{}
	once   sync.Once
	now    func() time.Time
}

type entry struct {
	v   []byte
	exp time.Time
}

// NewKV creates an in-memory store whose entries expire ttl after their last
// write. If ttl <= 0, a default of 30 days is used.
// Starts a background goroutine that evicts expired entries every minute.
func NewKV(ttl time.Duration) *KV {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	s := &KV{ttl: ttl, data: make(map[string]entry), closed: make(chan struct{}), now: time.Now}
	go s.cleanupLoop()
	return s
}

func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	_ = ctx
	cp := append([]byte(nil), value...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{v: cp, exp: s.now().Add(s.ttl)}
	return nil
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.exp) {
		delete(s.data, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.v...), true, nil
}

func (s *KV) Del(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len reports the number of stored entries, expired ones included until the
// next sweep.
func (s *KV) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *KV) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.closed:
			return
		}
	}
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *KV) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, v := range s.data {
		if now.After(v.exp) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

// Close stops the background cleanup goroutine.
func (s *KV) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
