package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billing/db/migrations"
	"github.com/dmitrymomot/billing/modules/checkout"
	"github.com/dmitrymomot/billing/pkg/config"
	"github.com/dmitrymomot/billing/pkg/email"
	"github.com/dmitrymomot/billing/pkg/environment"
	"github.com/dmitrymomot/billing/pkg/httpserver"
	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/pg"
	"github.com/dmitrymomot/billing/pkg/ratelimiter"
	"github.com/dmitrymomot/billing/pkg/redis"
	"github.com/dmitrymomot/billing/pkg/subscription"
	"github.com/dmitrymomot/billing/pkg/subscription/pgstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("billingd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	env := environment.Parse(cfg.Env)
	log := logger.New(
		logger.WithEnvironment(env, cfg.Name),
		logger.WithConfig(cfg.Log),
		logger.WithContextExtractors(environment.LoggerExtractor(), requestIDExtractor),
	)
	slog.SetDefault(log)

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return err
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.MigrateFS(ctx, pool, migrations.FS, ".", pgCfg, log); err != nil {
		return err
	}

	catalog, err := loadCatalog(pool, cfg.PlansFile)
	if err != nil {
		return err
	}
	provider, err := newProvider(cfg.Provider)
	if err != nil {
		return err
	}

	store := pgstore.New(pool)
	healthChecks := []func(context.Context) error{pg.Healthcheck(pool)}

	svcOpts := []subscription.ServiceOption{
		subscription.WithLogger(log),
		subscription.WithRecoveryStore(store),
	}

	var redisClient goredis.UniversalClient
	if cfg.RedisEnabled {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()

		redisClient = client
		svcOpts = append(svcOpts, subscription.WithPairLocker(redis.NewLockerFromConfig(client, redisCfg)))
		healthChecks = append(healthChecks, redis.Healthcheck(client))
	}

	if cfg.NotifySupport {
		notifier, err := newNotifier(env)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, subscription.WithSupportNotifier(notifier))
	}

	verifier := subscription.NewVerifier(provider, catalog,
		subscription.WithVerifierTimeout(cfg.ProviderTimeout),
		subscription.WithVerifierLogger(log),
	)
	svc := subscription.NewService(catalog, verifier, store, svcOpts...)

	if cfg.RecoveryInterval > 0 {
		go runRecovery(ctx, svc, cfg.RecoveryInterval, cfg.RecoveryBatchSize, log)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(environment.Middleware(env))
	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, healthChecks...))
	checkoutOpts := []checkout.Option{checkout.WithLogger(log)}
	if cfg.RateLimitEnabled {
		limiter, closeLimiter, err := newRateLimiter(redisClient)
		if err != nil {
			return err
		}
		defer closeLimiter()
		checkoutOpts = append(checkoutOpts, checkout.WithRateLimiter(limiter))
	}

	r.Mount(cfg.RoutePrefix, checkout.NewHandler(svc,
		checkout.HeaderUserResolver(cfg.UserHeader),
		checkoutOpts...,
	).Handle())

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log)).Run(ctx, r)
}

func loadCatalog(pool *pgxpool.Pool, plansFile string) (subscription.PlanCatalog, error) {
	if plansFile == "" {
		return pgstore.NewCatalog(pool), nil
	}
	f, err := os.Open(plansFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open plans file: %w", err)
	}
	defer f.Close()
	return subscription.LoadCatalogYAML(f)
}

func newProvider(name string) (subscription.CheckoutProvider, error) {
	switch name {
	case "stripe":
		var cfg subscription.StripeConfig
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		return subscription.NewStripeProvider(cfg)
	case "paddle":
		var cfg subscription.PaddleConfig
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		return subscription.NewPaddleProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown billing provider %q", name)
	}
}

func newNotifier(env environment.Environment) (subscription.SupportNotifier, error) {
	var cfg email.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if env.IsProduction() && cfg.PostmarkServerToken == "" {
		return nil, errors.New("POSTMARK_SERVER_TOKEN is required in production")
	}
	sender, err := email.NewSender(cfg)
	if err != nil {
		return nil, err
	}
	return subscription.NewEmailNotifier(sender, cfg.SupportEmail), nil
}

// newRateLimiter shares buckets through Redis when it is configured and keeps
// them in memory otherwise.
func newRateLimiter(client goredis.UniversalClient) (ratelimiter.RateLimiter, func(), error) {
	var cfg ratelimiter.Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, err
	}

	if client != nil {
		limiter, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client), cfg)
		if err != nil {
			return nil, nil, err
		}
		return limiter, func() {}, nil
	}

	store := ratelimiter.NewMemoryStore()
	limiter, err := ratelimiter.NewBucket(store, cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return limiter, store.Close, nil
}

func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return logger.RequestID(id), true
	}
	return slog.Attr{}, false
}
