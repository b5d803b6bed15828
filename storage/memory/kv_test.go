package memorystore

import (
	"context"
	"testing"
	"time"
)

func TestKVPutGetDel(t *testing.T) {
	kv := NewKV(time.Hour)
	defer kv.Close()
	ctx := context.Background()

	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty store")
	}
	if err := kv.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("get = %q, %v, %v", v, ok, err)
	}

	// Returned slices must not alias stored data.
	v[0] = 'x'
	v, _, _ = kv.Get(ctx, "k")
	if string(v) != "v1" {
		t.Fatalf("stored value mutated: %q", v)
	}

	if err := kv.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestKVExpiry(t *testing.T) {
	kv := NewKV(time.Minute)
	defer kv.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	_ = kv.Put(ctx, "a", []byte("1"))
	_ = kv.Put(ctx, "b", []byte("2"))

	now = now.Add(2 * time.Minute)
	if _, ok, _ := kv.Get(ctx, "a"); ok {
		t.Fatal("expected expired entry to be a miss")
	}
	if n := kv.Sweep(); n != 1 {
		t.Fatalf("sweep removed %d, want 1", n)
	}
	if kv.Len() != 0 {
		t.Fatalf("len = %d after sweep", kv.Len())
	}
}

func TestKVCloseIdempotent(t *testing.T) {
	kv := NewKV(0)
	_ = kv.Close()
	_ = kv.Close()
}
