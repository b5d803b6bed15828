package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PaulFidika/demogate/features"
	"github.com/PaulFidika/demogate/metrics"
	"github.com/PaulFidika/demogate/session"
	memorystore "github.com/PaulFidika/demogate/storage/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestGate(t *testing.T, opts ...Option) (*Gate, *session.Store) {
	t.Helper()
	kv := memorystore.NewKV(time.Hour)
	t.Cleanup(func() { _ = kv.Close() })
	store := session.NewStore(kv, session.Options{})
	return New(features.Default(), store, opts...), store
}

func TestFreshDeviceScenario(t *testing.T) {
	g, store := newTestGate(t)
	ctx := context.Background()

	sess, err := store.Load(ctx, "dev")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess.GenerationsLeft != 3 || !sess.WatermarkRequired {
		t.Fatalf("fresh session = %+v", sess)
	}

	for _, want := range []int{2, 1, 0} {
		got, err := g.Consume(ctx, "dev", features.BrandAnalysis)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if got.GenerationsLeft != want {
			t.Fatalf("after consume left = %d, want %d", got.GenerationsLeft, want)
		}
	}

	got, err := g.Consume(ctx, "dev", features.BrandAnalysis)
	if err != nil {
		t.Fatalf("fourth consume: %v", err)
	}
	if got.GenerationsLeft != 0 {
		t.Fatalf("fourth consume went below zero: %d", got.GenerationsLeft)
	}
	ok, err := g.CanUse(ctx, "dev", features.BrandAnalysis)
	if err != nil {
		t.Fatalf("canUse: %v", err)
	}
	if ok {
		t.Fatal("expected brandAnalysis to be denied when exhausted")
	}
}

func TestNonDemoFeaturesAlwaysAllowed(t *testing.T) {
	g, store := newTestGate(t)
	ctx := context.Background()
	zero := 0
	if _, err := store.Save(ctx, "dev", session.Patch{GenerationsLeft: &zero}); err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, d := range g.Catalog().All() {
		if d.Tier == features.Demo {
			continue
		}
		ok, err := g.CanUse(ctx, "dev", d.ID)
		if err != nil {
			t.Fatalf("canUse(%s): %v", d.ID, err)
		}
		if !ok {
			t.Fatalf("canUse(%s) = false for %s tier", d.ID, d.Tier)
		}
	}
}

func TestDashboardAllowedWithZeroLeft(t *testing.T) {
	g, store := newTestGate(t)
	ctx := context.Background()
	zero := 0
	_, _ = store.Save(ctx, "dev", session.Patch{GenerationsLeft: &zero})

	ok, err := g.CanUse(ctx, "dev", features.Dashboard)
	if err != nil || !ok {
		t.Fatalf("canUse(dashboard) = %v, %v", ok, err)
	}
}

func TestUnknownFeature(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	if _, err := g.CanUse(ctx, "dev", "nope"); !errors.Is(err, features.ErrNotFound) {
		t.Fatalf("canUse: expected ErrNotFound, got %v", err)
	}
	if _, err := g.Consume(ctx, "dev", "nope"); !errors.Is(err, features.ErrNotFound) {
		t.Fatalf("consume: expected ErrNotFound, got %v", err)
	}
	if _, err := g.Status(ctx, "dev", "nope"); !errors.Is(err, features.ErrNotFound) {
		t.Fatalf("status: expected ErrNotFound, got %v", err)
	}
}

func TestGateSharesQuotaAcrossDemoFeatures(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	_, _ = g.Consume(ctx, "dev", features.BrandAnalysis)
	_, _ = g.Consume(ctx, "dev", features.VisualIdentity)
	st, err := g.Status(ctx, "dev", features.VoiceContent)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.GenerationsLeft == nil || *st.GenerationsLeft != 1 || !st.Allowed {
		t.Fatalf("status = %+v", st)
	}
}

func TestStatusNonDemoHasNoBadge(t *testing.T) {
	g, _ := newTestGate(t)
	st, err := g.Status(context.Background(), "dev", features.VoiceCloning)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Allowed || st.GenerationsLeft != nil || st.Tier != features.Premium {
		t.Fatalf("status = %+v", st)
	}
}

func TestStatusAll(t *testing.T) {
	g, _ := newTestGate(t)
	all, err := g.StatusAll(context.Background(), "dev")
	if err != nil {
		t.Fatalf("statusAll: %v", err)
	}
	if len(all) != len(g.Catalog().All()) {
		t.Fatalf("got %d statuses", len(all))
	}
	for _, st := range all {
		if st.Tier == features.Demo && (st.GenerationsLeft == nil || *st.GenerationsLeft != 3) {
			t.Fatalf("demo status missing badge: %+v", st)
		}
	}
}

type staleSessions struct {
	loads int
	left  int
}

func (s *staleSessions) Load(context.Context, string) (session.Session, error) {
	s.loads++
	return session.Session{GenerationsLeft: s.left}, nil
}

func (s *staleSessions) Save(_ context.Context, _ string, p session.Patch) (session.Session, error) {
	s.left = *p.GenerationsLeft
	return session.Session{GenerationsLeft: s.left}, nil
}

func TestGateRereadsEveryCheck(t *testing.T) {
	ss := &staleSessions{left: 1}
	g := New(features.Default(), ss)
	ctx := context.Background()

	ok, _ := g.CanUse(ctx, "dev", features.BrandAnalysis)
	if !ok {
		t.Fatal("expected allowed")
	}
	ss.left = 0 // another surface spent the last generation
	ok, _ = g.CanUse(ctx, "dev", features.BrandAnalysis)
	if ok {
		t.Fatal("gate used a cached session")
	}
	if ss.loads != 2 {
		t.Fatalf("loads = %d, want 2", ss.loads)
	}
}

func TestGateRecordsMetrics(t *testing.T) {
	m := metrics.New()
	g, _ := newTestGate(t, WithMetrics(m))
	ctx := context.Background()

	_, _ = g.CanUse(ctx, "dev", features.BrandAnalysis)
	_, _ = g.Consume(ctx, "dev", features.BrandAnalysis)

	n, err := testutil.GatherAndCount(m.Registry, "demogate_gate_checks_total", "demogate_gate_consumes_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Fatalf("series = %d, want 2", n)
	}
}
