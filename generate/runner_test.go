package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PaulFidika/demogate/features"
	"github.com/PaulFidika/demogate/progress"
	"github.com/PaulFidika/demogate/quota"
	"github.com/PaulFidika/demogate/session"
	memorystore "github.com/PaulFidika/demogate/storage/memory"
)

func newTestRunner(t *testing.T) (*Runner, *session.Store) {
	t.Helper()
	kv := memorystore.NewKV(time.Hour)
	t.Cleanup(func() { _ = kv.Close() })
	store := session.NewStore(kv, session.Options{})
	cat := features.Default()
	return &Runner{
		Catalog:  cat,
		Registry: NewRegistry(),
		Jobs:     NewJobs(time.Minute, progress.Options{Interval: time.Hour}),
		Quota:    quota.New(cat, store),
	}, store
}

func TestRunConsumesOnSuccess(t *testing.T) {
	r, store := newTestRunner(t)
	var seen Request
	r.Registry.Register(features.VoiceContent, Func(func(ctx context.Context, req Request) (Result, error) {
		seen = req
		return Result{Output: map[string]any{"audio_url": "https://cdn.example/a.mp3"}}, nil
	}))

	out, err := r.Run(context.Background(), "dev", features.VoiceContent, map[string]any{"script": "hi"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if seen.Limits == nil || *seen.Limits.MaxDurationSeconds != 30 {
		t.Fatalf("limits not passed to generator: %+v", seen.Limits)
	}
	if out.Job.Status != JobSucceeded || out.Job.Progress.Value != 100 || out.Job.Progress.State != progress.Completed {
		t.Fatalf("job = %+v", out.Job)
	}
	if out.Job.Result == nil || !out.Job.Result.Watermarked {
		t.Fatalf("demo result must be watermarked: %+v", out.Job.Result)
	}
	if out.Session == nil || out.Session.GenerationsLeft != 2 {
		t.Fatalf("session = %+v", out.Session)
	}
	sess, _ := store.Load(context.Background(), "dev")
	if sess.GenerationsLeft != 2 {
		t.Fatalf("persisted left = %d", sess.GenerationsLeft)
	}

	j, ok := r.Jobs.Get(out.Job.ID)
	if !ok || j.View().Status != JobSucceeded {
		t.Fatal("job not retrievable")
	}
}

func TestRunFailureDoesNotConsume(t *testing.T) {
	r, store := newTestRunner(t)
	boom := errors.New("provider timeout")
	r.Registry.Register(features.BrandAnalysis, Func(func(context.Context, Request) (Result, error) {
		return Result{}, boom
	}))

	out, err := r.Run(context.Background(), "dev", features.BrandAnalysis, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if out.Job.Status != JobFailed || out.Job.Error != "provider timeout" || out.Job.Progress.State != progress.Idle {
		t.Fatalf("job = %+v", out.Job)
	}
	sess, _ := store.Load(context.Background(), "dev")
	if sess.GenerationsLeft != 3 {
		t.Fatalf("failed run consumed quota: %d", sess.GenerationsLeft)
	}
}

func TestRunWithoutGenerator(t *testing.T) {
	r, _ := newTestRunner(t)
	if _, err := r.Run(context.Background(), "dev", features.BrandAnalysis, nil); !errors.Is(err, ErrNoGenerator) {
		t.Fatalf("expected ErrNoGenerator, got %v", err)
	}
	if _, err := r.Run(context.Background(), "dev", "nope", nil); !errors.Is(err, features.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunNonDemoFeatureKeepsQuota(t *testing.T) {
	r, store := newTestRunner(t)
	r.Registry.Register(features.ExportPDF, Func(func(context.Context, Request) (Result, error) {
		return Result{Output: map[string]any{"pdf": "..."}}, nil
	}))
	out, err := r.Run(context.Background(), "dev", features.ExportPDF, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Session != nil || out.Job.Result.Watermarked {
		t.Fatalf("unexpected outcome %+v", out)
	}
	sess, _ := store.Load(context.Background(), "dev")
	if sess.GenerationsLeft != 3 {
		t.Fatalf("non-demo run consumed quota: %d", sess.GenerationsLeft)
	}
}

func TestJobsSweep(t *testing.T) {
	jobs := NewJobs(time.Minute, progress.Options{})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jobs.now = func() time.Time { return now }

	done := jobs.create("brandAnalysis", "dev")
	done.finish(JobSucceeded, &Result{}, "", now)
	running := jobs.create("brandAnalysis", "dev")

	now = now.Add(2 * time.Minute)
	if n := jobs.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, ok := jobs.Get(done.ID); ok {
		t.Fatal("finished job survived sweep")
	}
	if _, ok := jobs.Get(running.ID); !ok {
		t.Fatal("running job was swept")
	}
}
