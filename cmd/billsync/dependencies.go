package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/pg"
	"github.com/dmitrymomot/billsync/pkg/redis"
	svcbilling "github.com/dmitrymomot/billsync/svc/billing"
)

// dependencies holds the long-lived clients of the process.
type dependencies struct {
	pool  *pgxpool.Pool
	redis *goredis.Client

	// store is the reconciliation store: Postgres behind the customer cache.
	store billing.Store
	// accounts serves the checkout endpoints.
	accounts svcbilling.AccountStore
	// stripe and sessions are nil when Stripe is not configured.
	stripe   *billing.StripeProvider
	sessions svcbilling.SessionProvider
	checks   []httpserver.Check
}

func newDependencies(ctx context.Context, cfg appConfig, log *slog.Logger) (*dependencies, error) {
	d := &dependencies{}

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	d.pool = pool
	d.checks = append(d.checks, httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)})

	if err := pg.Migrate(ctx, pool, cfg.Postgres, svcbilling.Migrations(), log.With(logger.Component("migrations"))); err != nil {
		d.Close()
		return nil, err
	}

	pgStore := svcbilling.NewStore(pool)
	d.accounts = pgStore
	d.store = billing.NewCachedStore(pgStore, cfg.Billing.CustomerCacheSize, cfg.Billing.CustomerCacheTTL)

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.redis = client
		d.checks = append(d.checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)})
	} else {
		log.Info("REDIS_URL is empty, poll cycles are not coordinated across instances")
	}

	if cfg.Billing.Enabled() {
		provider, err := billing.NewStripeProvider(cfg.Billing, billing.WithStripeLogger(log))
		if err != nil {
			d.Close()
			return nil, err
		}
		d.stripe = provider
		d.sessions = provider
	}

	return d, nil
}

// Close releases the clients in reverse order of creation.
func (d *dependencies) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}
