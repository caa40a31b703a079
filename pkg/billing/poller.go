package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/requestid"
)

const (
	// DefaultPollInterval is the sleep between two completed poll cycles.
	DefaultPollInterval = 5 * time.Minute
	// DefaultLockKey is the shared key guarding poll cycles across instances.
	DefaultLockKey = "billsync:poll-lock"
	// DefaultLockTTL bounds how long a crashed instance can block other pollers.
	DefaultLockTTL = 10 * time.Minute
)

// State is the poll scheduler state.
type State int32

const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Poller drives the fetcher on a fixed cadence. Cycles never overlap: the
// interval is measured from the end of one cycle to the start of the next.
type Poller struct {
	fetcher  *Fetcher
	interval time.Duration
	locker   Locker
	lockKey  string
	lockTTL  time.Duration
	logger   *slog.Logger
	provider Provider

	state     atomic.Int32
	startOnce sync.Once
	done      chan struct{}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the sleep between cycles.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLocker guards each cycle with a cross-process lock.
func WithLocker(l Locker) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.locker = l
		}
	}
}

// WithLockKey sets the lock key and TTL used with the configured Locker.
func WithLockKey(key string, ttl time.Duration) PollerOption {
	return func(p *Poller) {
		if key != "" {
			p.lockKey = key
		}
		if ttl > 0 {
			p.lockTTL = ttl
		}
	}
}

// WithPollerLogger sets the poller logger.
func WithPollerLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProvider makes PollPeriodically use p instead of building its own
// Stripe client. NewPoller ignores it.
func WithProvider(p Provider) PollerOption {
	return func(pl *Poller) {
		if p != nil {
			pl.provider = p
		}
	}
}

// NewPoller creates a poll scheduler around fetcher.
// Panics if fetcher is nil.
func NewPoller(fetcher *Fetcher, opts ...PollerOption) *Poller {
	if fetcher == nil {
		panic("billing: Fetcher is required")
	}
	p := &Poller{
		fetcher:  fetcher,
		interval: DefaultPollInterval,
		locker:   noopLocker{},
		lockKey:  DefaultLockKey,
		lockTTL:  DefaultLockTTL,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current scheduler state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Run polls immediately and then once per interval until ctx is cancelled.
// Failed or panicking cycles are logged and do not stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "billing poller started",
		logger.Duration(p.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(context.WithoutCancel(ctx), "billing poller shutting down")
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := p.PollOnce(ctx); err != nil {
			switch {
			case errors.Is(err, ErrLockNotAcquired):
				p.logger.DebugContext(ctx, "poll cycle skipped, lock held elsewhere")
			case ctx.Err() != nil:
				// shutdown in progress
			default:
				p.logger.ErrorContext(ctx, "poll cycle failed", logger.Error(err))
			}
		}

		timer.Reset(p.interval)
	}
}

// Start runs the loop in a background goroutine. Done is closed when it exits.
// Only the first call starts a loop.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go func() {
			defer close(p.done)
			_ = p.Run(ctx)
		}()
	})
}

// Done is closed when a loop launched by Start has returned.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// PollOnce runs a single cycle: it takes the cycle lock, walks the event feed
// and returns to idle regardless of the outcome.
func (p *Poller) PollOnce(ctx context.Context) (stats CycleStats, err error) {
	release, acquired, err := p.locker.TryLock(ctx, p.lockKey, p.lockTTL)
	if err != nil {
		return stats, err
	}
	if !acquired {
		return stats, ErrLockNotAcquired
	}
	defer release()

	ctx = requestid.WithContext(ctx, requestid.New("poll"))
	p.state.Store(int32(StatePolling))
	defer p.state.Store(int32(StateIdle))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPollPanicked, r)
		}
	}()

	start := time.Now()
	p.logger.InfoContext(ctx, "poll cycle started")

	stats, err = p.fetcher.FetchAndProcess(ctx)
	if err != nil {
		return stats, err
	}

	p.logger.InfoContext(ctx, "poll cycle finished",
		slog.Int("pages", stats.Pages),
		slog.Int("events", stats.Events),
		slog.Int("failed", stats.Failed),
		logger.Duration(time.Since(start)))

	return stats, nil
}

// PollPeriodically wires the reconciliation engine from cfg and starts the
// poller in the background. A Stripe client is built from cfg unless one is
// passed with WithProvider. When no API key is configured it logs a single
// warning and returns nil without starting anything.
func PollPeriodically(ctx context.Context, cfg Config, store Store, opts ...PollerOption) *Poller {
	p := &Poller{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	log := p.logger

	if !cfg.Enabled() {
		log.WarnContext(ctx, "STRIPE_API_KEY is not set, billing events will not be polled")
		return nil
	}

	provider := p.provider
	if provider == nil {
		sp, err := NewStripeProvider(cfg, WithStripeLogger(log))
		if err != nil {
			log.ErrorContext(ctx, "failed to create billing provider", logger.Error(err))
			return nil
		}
		provider = sp
	}

	resolver := NewResolver(store, provider, WithResolverLogger(log))
	dispatcher := NewDispatcher(resolver, NewUpserter(store), WithDispatcherLogger(log))
	fetcher := NewFetcher(provider, dispatcher,
		WithPageSize(cfg.PageSize),
		WithFetcherLogger(log))

	pollerOpts := append([]PollerOption{
		WithInterval(cfg.PollInterval),
		WithLockKey(cfg.LockKey, cfg.LockTTL),
	}, opts...)

	poller := NewPoller(fetcher, pollerOpts...)
	poller.Start(ctx)
	return poller
}
