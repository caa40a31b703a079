package billing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v82"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) FetchCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Customer), args.Error(1)
}

func (m *mockProvider) ListEvents(ctx context.Context, params billing.ListEventsParams) (*billing.EventPage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.EventPage), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetUserByEmail(ctx context.Context, email string) (*billing.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.User), args.Error(1)
}

func (m *mockStore) GetBillingCustomerByProviderID(ctx context.Context, id string) (*billing.BillingCustomer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingCustomer), args.Error(1)
}

func (m *mockStore) CreateBillingCustomer(ctx context.Context, params billing.CreateBillingCustomerParams) (*billing.BillingCustomer, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingCustomer), args.Error(1)
}

func (m *mockStore) UpsertBillingSubscription(ctx context.Context, params billing.UpsertBillingSubscriptionParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// feedProvider serves a fixed event feed split into pages and a customer directory.
type feedProvider struct {
	mu        sync.Mutex
	pages     [][]*stripe.Event
	customers map[string]*stripe.Customer
	listErr   error
	requests  []billing.ListEventsParams
	fetches   []string
}

func (p *feedProvider) FetchCustomer(_ context.Context, id string) (*stripe.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches = append(p.fetches, id)
	c, ok := p.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", billing.ErrCustomerNotFound, id)
	}
	return c, nil
}

func (p *feedProvider) ListEvents(_ context.Context, params billing.ListEventsParams) (*billing.EventPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, params)
	if p.listErr != nil {
		return nil, p.listErr
	}

	idx := 0
	if params.StartingAfter != "" {
		idx = -1
		for i, page := range p.pages {
			if len(page) > 0 && page[len(page)-1].ID == params.StartingAfter {
				idx = i + 1
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("unknown cursor %s", params.StartingAfter)
		}
	}
	if idx >= len(p.pages) {
		return &billing.EventPage{}, nil
	}
	return &billing.EventPage{
		Events:  p.pages[idx],
		HasMore: idx < len(p.pages)-1,
	}, nil
}

func (p *feedProvider) Requests() []billing.ListEventsParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]billing.ListEventsParams(nil), p.requests...)
}

func (p *feedProvider) Fetches() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.fetches...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEvent(id string, typ stripe.EventType, created int64, object any) *stripe.Event {
	raw, err := json.Marshal(object)
	if err != nil {
		panic(err)
	}
	return &stripe.Event{
		ID:      id,
		Type:    typ,
		Created: created,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func customerObject(id, email string) map[string]any {
	return map[string]any{
		"id":     id,
		"object": "customer",
		"email":  email,
	}
}

func subscriptionObject(id string, customer any, status string) map[string]any {
	return map[string]any{
		"id":       id,
		"object":   "subscription",
		"customer": customer,
		"status":   status,
	}
}

func newEngine(store billing.Store, provider billing.Provider) (*billing.Dispatcher, *billing.Resolver) {
	resolver := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
	dispatcher := billing.NewDispatcher(resolver, billing.NewUpserter(store),
		billing.WithDispatcherLogger(discardLogger()))
	return dispatcher, resolver
}
