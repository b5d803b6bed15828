package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	demogin "github.com/PaulFidika/demogate/adapters/gin"
	"github.com/PaulFidika/demogate/features"
	"github.com/PaulFidika/demogate/generate"
	"github.com/PaulFidika/demogate/metrics"
	"github.com/PaulFidika/demogate/progress"
	"github.com/PaulFidika/demogate/quota"
	"github.com/PaulFidika/demogate/session"
	memorystore "github.com/PaulFidika/demogate/storage/memory"
	demotest "github.com/PaulFidika/demogate/testing"
	"github.com/gin-gonic/gin"
)

func newTestDeps(t *testing.T, ping Pinger, origins ...string) (RouterDeps, *demotest.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	kv := memorystore.NewKV(time.Hour)
	t.Cleanup(func() { _ = kv.Close() })

	m := metrics.New()
	cat := features.Default()
	store := session.NewStore(kv, session.Options{})
	gate := quota.New(cat, store, quota.WithMetrics(m))
	reg := generate.NewRegistry()
	reg.Register(features.BrandAnalysis, generate.Func(func(context.Context, generate.Request) (generate.Result, error) {
		return generate.Result{Output: map[string]any{"ok": true}}, nil
	}))
	iss := demotest.NewIssuer()
	return RouterDeps{
		Gate:     gate,
		Sessions: store,
		Runner: &generate.Runner{
			Catalog:  cat,
			Registry: reg,
			Jobs:     generate.NewJobs(time.Minute, progress.Options{Interval: time.Hour}),
			Quota:    gate,
			Metrics:  m,
		},
		Verifier:    iss.Verifier(),
		Metrics:     m,
		Health:      NewHealthHandler("test", "memory", ping),
		CORSOrigins: origins,
	}, iss
}

func TestHealthz(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	r := BuildRouter(deps)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Backend != "memory" || resp.Version != "test" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHealthzStoreDown(t *testing.T) {
	deps, _ := newTestDeps(t, func(context.Context) error { return errors.New("refused") })
	r := BuildRouter(deps)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGenerateThenMetrics(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	r := BuildRouter(deps)

	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/generate/"+features.BrandAnalysis, nil)
		req.Header.Set("X-Device-ID", "device-0001")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		want := http.StatusOK
		if i == 3 {
			want = http.StatusPaymentRequired
		}
		if w.Code != want {
			t.Fatalf("generation %d: expected %d, got %d: %s", i, want, w.Code, w.Body.String())
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	for _, want := range []string{
		`demogate_gate_consumes_total{feature="brandAnalysis"} 3`,
		`demogate_generation_jobs_total{feature="brandAnalysis",status="succeeded"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestPremiumRouteWithToken(t *testing.T) {
	deps, iss := newTestDeps(t, nil)
	deps.Runner.Registry.Register(features.BrandKit, generate.Func(func(context.Context, generate.Request) (generate.Result, error) {
		return generate.Result{}, nil
	}))
	r := BuildRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/generate/"+features.BrandKit, nil)
	req.Header.Set("Authorization", "Bearer "+iss.Token("user-1", "premium"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(demogin.BadgeHeader) != "" {
		t.Fatalf("badge set on a premium feature")
	}
}

func TestCORSPreflight(t *testing.T) {
	deps, _ := newTestDeps(t, nil, "https://app.example")
	r := BuildRouter(deps)

	req := httptest.NewRequest(http.MethodOptions, "/demo/session", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestCORSConfig(t *testing.T) {
	if _, ok := corsConfig(nil); ok {
		t.Fatal("expected CORS disabled without origins")
	}
	c, ok := corsConfig([]string{"*"})
	if !ok || !c.AllowAllOrigins || c.AllowCredentials {
		t.Fatalf("wildcard config = %+v", c)
	}
}
