// Command billsync reconciles Stripe subscriptions into Postgres and serves
// the checkout and billing portal endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/config"
	"github.com/dmitrymomot/billsync/pkg/environment"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/pg"
	"github.com/dmitrymomot/billsync/pkg/redis"
	"github.com/dmitrymomot/billsync/pkg/requestid"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"` // Env is development, staging or production.
	Name     string `env:"APP_NAME" envDefault:"billsync"`   // Name is attached to every log record as "service".
	LogLevel string `env:"LOG_LEVEL"`                        // LogLevel overrides the environment default level.

	Billing  billing.Config
	Postgres pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		slog.Error("billsync stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(environment.Parse(cfg.Env), cfg.Name),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deps, err := newDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	pollerOpts := []billing.PollerOption{billing.WithPollerLogger(log)}
	if deps.redis != nil {
		pollerOpts = append(pollerOpts, billing.WithLocker(billing.NewRedisLocker(deps.redis)))
	}
	if deps.stripe != nil {
		pollerOpts = append(pollerOpts, billing.WithProvider(deps.stripe))
	}
	poller := billing.PollPeriodically(ctx, cfg.Billing, deps.store, pollerOpts...)

	srv := httpserver.New(cfg.HTTP, newRouter(deps, cfg.Billing, log), httpserver.WithLogger(log))
	runErr := srv.Run(ctx)

	cancel()
	if poller != nil {
		<-poller.Done()
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("billsync stopped")
	return nil
}
