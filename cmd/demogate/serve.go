package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	demogin "github.com/PaulFidika/demogate/adapters/gin"
	"github.com/PaulFidika/demogate/config"
	"github.com/PaulFidika/demogate/features"
	"github.com/PaulFidika/demogate/generate"
	jwtkit "github.com/PaulFidika/demogate/jwt"
	"github.com/PaulFidika/demogate/metrics"
	"github.com/PaulFidika/demogate/progress"
	"github.com/PaulFidika/demogate/quota"
	"github.com/PaulFidika/demogate/ratelimit"
	memorylimiter "github.com/PaulFidika/demogate/ratelimit/memory"
	redislimiter "github.com/PaulFidika/demogate/ratelimit/redis"
	"github.com/PaulFidika/demogate/server"
	"github.com/PaulFidika/demogate/session"
	memorystore "github.com/PaulFidika/demogate/storage/memory"
	pgstore "github.com/PaulFidika/demogate/storage/postgres"
	redisstore "github.com/PaulFidika/demogate/storage/redis"
	"github.com/PaulFidika/demogate/sweep"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(sctx, cfg)
		},
	}
}

// backend bundles the session storage selected by STORE_BACKEND together
// with its health probe, sweep tasks and cleanup.
type backend struct {
	kv      session.Backend
	limiter ratelimit.Limiter
	ping    server.Pinger
	sweeps  []sweep.Task
	close   func()
}

func openBackend(ctx context.Context, cfg *config.Config, limits map[string]ratelimit.Limit) (*backend, error) {
	switch cfg.Store.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return &backend{
			kv:      redisstore.NewKV(rdb, "", cfg.Store.SessionTTL),
			limiter: redislimiter.New(rdb, limits),
			ping:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close:   func() { _ = rdb.Close() },
		}, nil

	case "postgres":
		pool, err := openPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		kv := pgstore.NewKV(pool, "", cfg.Store.SessionTTL)
		ml := memorylimiter.New(limits)
		return &backend{
			kv:      kv,
			limiter: ml,
			ping:    pool.Ping,
			sweeps: []sweep.Task{
				{Name: "expired_sessions", Run: kv.PurgeExpired},
				{Name: "rate_limit_windows", Run: func(context.Context) (int64, error) { return int64(ml.Prune()), nil }},
			},
			close: pool.Close,
		}, nil

	default:
		kv := memorystore.NewKV(cfg.Store.SessionTTL)
		ml := memorylimiter.New(limits)
		return &backend{
			kv:      kv,
			limiter: ml,
			sweeps: []sweep.Task{
				{Name: "expired_sessions", Run: func(context.Context) (int64, error) { return int64(kv.Sweep()), nil }},
				{Name: "rate_limit_windows", Run: func(context.Context) (int64, error) { return int64(ml.Prune()), nil }},
			},
			close: func() { _ = kv.Close() },
		}, nil
	}
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(cctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	pctx, pcancel := context.WithTimeout(ctx, 2*time.Second)
	defer pcancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func rateLimits(cfg *config.Config) map[string]ratelimit.Limit {
	limits := ratelimit.Defaults()
	limits[ratelimit.BucketConsume] = ratelimit.Limit{Limit: cfg.RateLimit.ConsumePerMinute, Window: time.Minute}
	limits[ratelimit.BucketGenerate] = ratelimit.Limit{Limit: cfg.RateLimit.GeneratePerMinute, Window: time.Minute}
	limits[ratelimit.BucketSession] = ratelimit.Limit{Limit: cfg.RateLimit.SessionPerMinute, Window: time.Minute}
	return limits
}

func loadCatalog(cfg *config.Config) (*features.Catalog, error) {
	if cfg.Demo.CatalogFile == "" {
		return features.Default(), nil
	}
	return features.LoadFile(cfg.Demo.CatalogFile)
}

func loadVerifier(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*jwtkit.Verifier, error) {
	switch {
	case cfg.Auth.JWKSURL != "":
		log.WithField("jwks_url", cfg.Auth.JWKSURL).Info("verifying bearer tokens against jwks")
		return jwtkit.NewJWKSVerifier(ctx, cfg.Auth.JWKSURL, cfg.Auth.Issuer, cfg.Auth.Audience)
	case cfg.Auth.PublicKeyFile != "":
		return jwtkit.LoadVerifier(cfg.Auth.PublicKeyFile, cfg.Auth.Issuer, cfg.Auth.Audience)
	default:
		log.Warn("neither JWT_JWKS_URL nor JWT_PUBLIC_KEY_FILE set; authenticated and premium features will reject every caller")
		return nil, nil
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logrus.WithField("service", "demogate")
	if lvl, _ := logrus.ParseLevel(cfg.Log.Level); lvl < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	verifier, err := loadVerifier(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("load verifier: %w", err)
	}
	be, err := openBackend(ctx, cfg, rateLimits(cfg))
	if err != nil {
		return err
	}
	defer be.close()

	m := metrics.New()
	store := session.NewStore(be.kv, session.Options{Generations: cfg.Demo.Generations, Log: log})
	gate := quota.New(catalog, store, quota.WithMetrics(m), quota.WithLogger(log))
	jobs := generate.NewJobs(cfg.Demo.JobTTL, progress.Options{})
	runner := &generate.Runner{
		Catalog:  catalog,
		Registry: generate.NewRegistry(),
		Jobs:     jobs,
		Quota:    gate,
		Metrics:  m,
		Log:      log.WithField("component", "generate"),
	}

	sweeps := append(be.sweeps, sweep.Task{
		Name: "finished_jobs",
		Run:  func(context.Context) (int64, error) { return int64(jobs.Sweep()), nil },
	})
	sched, err := sweep.NewScheduler(cfg.Store.SweepSchedule, log, sweeps...)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	router := server.BuildRouter(server.RouterDeps{
		Gate:     gate,
		Sessions: store,
		Runner:   runner,
		Limiter:  be.limiter,
		Verifier: verifier,
		Metrics:  m,
		Health:   server.NewHealthHandler(version, cfg.Store.Backend, be.ping),
		Prompts: demogin.PromptConfig{
			UpgradeURL: cfg.Demo.UpgradeURL,
			SignInURL:  cfg.Demo.SignInURL,
		},
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"backend":  cfg.Store.Backend,
			"features": len(catalog.All()),
		}).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
