package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v82"
)

const (
	// DefaultPageSize is the number of events requested per page.
	DefaultPageSize int64 = 100
	maxPageSize     int64 = 100
)

// CycleStats summarizes one walk over the event feed.
type CycleStats struct {
	Pages  int
	Events int
	Failed int
}

// Fetcher walks the provider event feed page by page and dispatches every event.
type Fetcher struct {
	provider   Provider
	dispatcher *Dispatcher
	types      []stripe.EventType
	pageSize   int64
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithPageSize sets the number of events per page (1..100).
func WithPageSize(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 && n <= maxPageSize {
			f.pageSize = n
		}
	}
}

// WithFetcherLogger sets the fetcher logger.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates an event fetcher for the reconciled event types.
// Panics if provider or dispatcher is nil.
func NewFetcher(provider Provider, dispatcher *Dispatcher, opts ...FetcherOption) *Fetcher {
	if provider == nil {
		panic("billing: Provider is required")
	}
	if dispatcher == nil {
		panic("billing: Dispatcher is required")
	}
	f := &Fetcher{
		provider:   provider,
		dispatcher: dispatcher,
		types:      ReconciledEventTypes(),
		pageSize:   DefaultPageSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAndProcess requests pages until the provider reports no more, handing
// every event to the dispatcher. Walks are bounded by the has-more flag of the
// pages returned during this call. A failed page request aborts the walk;
// failed events do not.
func (f *Fetcher) FetchAndProcess(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	params := ListEventsParams{
		Types: f.types,
		Limit: f.pageSize,
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		f.logger.InfoContext(ctx, "retrieving events from billing provider",
			slog.String("types", joinTypes(f.types)),
			slog.Int("page", stats.Pages+1))

		page, err := f.provider.ListEvents(ctx, params)
		if err != nil {
			return stats, errors.Join(ErrFetchEvents, err)
		}
		stats.Pages++
		stats.Events += len(page.Events)
		stats.Failed += f.dispatcher.HandleAll(ctx, page.Events)

		if !page.HasMore {
			return stats, nil
		}

		last := lastEventID(page.Events)
		if last == "" {
			return stats, fmt.Errorf("%w: page reported more events but carried none", ErrFetchEvents)
		}
		params.StartingAfter = last
	}
}

func lastEventID(events []*stripe.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i] != nil && events[i].ID != "" {
			return events[i].ID
		}
	}
	return ""
}

func joinTypes(types []stripe.EventType) string {
	s := make([]string, len(types))
	for i, t := range types {
		s[i] = string(t)
	}
	return strings.Join(s, ", ")
}
