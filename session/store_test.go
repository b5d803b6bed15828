package session

import (
	"context"
	"errors"
	"testing"
	"time"

	memorystore "github.com/PaulFidika/demogate/storage/memory"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var fixedNow = time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)

func newTestStore(t *testing.T) (*Store, *memorystore.KV, *test.Hook) {
	t.Helper()
	kv := memorystore.NewKV(time.Hour)
	t.Cleanup(func() { _ = kv.Close() })
	logger, hook := test.NewNullLogger()
	s := NewStore(kv, Options{
		Now: func() time.Time { return fixedNow },
		Log: logrus.NewEntry(logger),
	})
	return s, kv, hook
}

func TestLoadCreatesDefaultSession(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Load(ctx, "dev-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess.GenerationsLeft != 3 || !sess.WatermarkRequired {
		t.Fatalf("unexpected fresh session %+v", sess)
	}
	if !sess.StartedAt.Equal(fixedNow.Truncate(time.Millisecond)) {
		t.Fatalf("startedAt = %v", sess.StartedAt)
	}

	raw, ok, _ := kv.Get(ctx, DefaultKeyPrefix+"dev-1")
	if !ok {
		t.Fatal("fresh session was not persisted")
	}
	want := `{"generationsLeft":3,"startTime":"2025-06-01T12:30:45.123Z","hasWatermark":true}`
	if string(raw) != want {
		t.Fatalf("persisted %s, want %s", raw, want)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Load(ctx, "dev-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s.now = func() time.Time { return fixedNow.Add(time.Hour) }
	b, err := s.Load(ctx, "dev-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a != b {
		t.Fatalf("loads differ: %+v vs %+v", a, b)
	}
}

func TestSaveOfLoadIsNoop(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	before, _ := s.Load(ctx, "dev-1")
	left, started, wm := before.GenerationsLeft, before.StartedAt, before.WatermarkRequired
	if _, err := s.Save(ctx, "dev-1", Patch{GenerationsLeft: &left, StartedAt: &started, WatermarkRequired: &wm}); err != nil {
		t.Fatalf("save: %v", err)
	}
	after, _ := s.Load(ctx, "dev-1")
	if before != after {
		t.Fatalf("save(load()) changed state: %+v -> %+v", before, after)
	}
}

func TestSaveMergesPatch(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	one := 1
	got, err := s.Save(ctx, "dev-1", Patch{GenerationsLeft: &one})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if got.GenerationsLeft != 1 || !got.WatermarkRequired {
		t.Fatalf("merged = %+v", got)
	}
	again, _ := s.Load(ctx, "dev-1")
	if again != got {
		t.Fatalf("load after save = %+v, want %+v", again, got)
	}

	neg := -4
	got, _ = s.Save(ctx, "dev-1", Patch{GenerationsLeft: &neg})
	if got.GenerationsLeft != 0 {
		t.Fatalf("negative patch not clamped: %d", got.GenerationsLeft)
	}
}

func TestCorruptRecordReplaced(t *testing.T) {
	cases := map[string]string{
		"not json":          "definitely not json",
		"negative":          `{"generationsLeft":-1,"startTime":"2025-01-01T00:00:00.000Z","hasWatermark":true}`,
		"missing count":     `{"startTime":"2025-01-01T00:00:00.000Z","hasWatermark":true}`,
		"missing watermark": `{"generationsLeft":0,"startTime":"2025-01-01T00:00:00.000Z"}`,
		"bad timestamp":     `{"generationsLeft":2,"startTime":"yesterday","hasWatermark":true}`,
		"wrong json type":   `[1,2,3]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			s, kv, hook := newTestStore(t)
			ctx := context.Background()
			_ = kv.Put(ctx, DefaultKeyPrefix+"dev-1", []byte(raw))

			sess, err := s.Load(ctx, "dev-1")
			if err != nil {
				t.Fatalf("load returned error for corrupt data: %v", err)
			}
			if sess.GenerationsLeft != 3 || !sess.WatermarkRequired {
				t.Fatalf("expected fresh default, got %+v", sess)
			}
			if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
				t.Fatalf("expected a warning to be logged, got %v", e)
			}
			stored, _, _ := kv.Get(ctx, DefaultKeyPrefix+"dev-1")
			if _, err := decode(stored); err != nil {
				t.Fatalf("corrupt record was not replaced: %s", stored)
			}
		})
	}
}

func TestValidRecordFromClientFormat(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()
	_ = kv.Put(ctx, DefaultKeyPrefix+"dev-1", []byte(`{"generationsLeft":1,"startTime":"2024-12-24T08:00:00Z","hasWatermark":false}`))

	sess, err := s.Load(ctx, "dev-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess.GenerationsLeft != 1 || sess.WatermarkRequired {
		t.Fatalf("unexpected %+v", sess)
	}
	if !sess.StartedAt.Equal(time.Date(2024, 12, 24, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("startedAt = %v", sess.StartedAt)
	}
}

func TestResetStartsOver(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	zero := 0
	_, _ = s.Save(ctx, "dev-1", Patch{GenerationsLeft: &zero})
	if err := s.Reset(ctx, "dev-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	sess, _ := s.Load(ctx, "dev-1")
	if sess.GenerationsLeft != 3 {
		t.Fatalf("after reset left = %d", sess.GenerationsLeft)
	}
}

func TestDevicesAreIsolated(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	zero := 0
	_, _ = s.Save(ctx, "dev-1", Patch{GenerationsLeft: &zero})
	other, _ := s.Load(ctx, "dev-2")
	if other.GenerationsLeft != 3 {
		t.Fatalf("dev-2 affected by dev-1: %+v", other)
	}
}

type failingBackend struct{}

var errDown = errors.New("backend down")

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errDown }
func (failingBackend) Put(context.Context, string, []byte) error         { return errDown }
func (failingBackend) Del(context.Context, string) error                 { return errDown }

func TestBackendErrorsPropagate(t *testing.T) {
	s := NewStore(failingBackend{}, Options{})
	if _, err := s.Load(context.Background(), "dev-1"); !errors.Is(err, errDown) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if err := s.Reset(context.Background(), "dev-1"); !errors.Is(err, errDown) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestLoadRequiresDeviceID(t *testing.T) {
	s, _, _ := newTestStore(t)
	if _, err := s.Load(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty device id")
	}
}

func TestCustomGenerations(t *testing.T) {
	kv := memorystore.NewKV(time.Hour)
	defer kv.Close()
	off := false
	s := NewStore(kv, Options{Generations: 5, WatermarkRequired: &off, KeyPrefix: "x:"})
	sess, err := s.Load(context.Background(), "dev")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess.GenerationsLeft != 5 || sess.WatermarkRequired {
		t.Fatalf("unexpected %+v", sess)
	}
	if _, ok, _ := kv.Get(context.Background(), "x:dev"); !ok {
		t.Fatal("custom prefix not used")
	}
}
