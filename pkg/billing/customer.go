package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stripe/stripe-go/v82"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// CustomerRef points at a provider customer either by bare ID or by an
// already materialized record (an expanded object embedded in an event).
type CustomerRef struct {
	id       string
	customer *stripe.Customer
}

// CustomerByID references a provider customer by ID only.
func CustomerByID(id string) CustomerRef {
	return CustomerRef{id: id}
}

// CustomerObject references a provider customer through its full record.
func CustomerObject(c *stripe.Customer) CustomerRef {
	if c == nil {
		return CustomerRef{}
	}
	return CustomerRef{id: c.ID, customer: c}
}

// ID returns the provider customer ID.
func (r CustomerRef) ID() string {
	return r.id
}

// Materialized reports whether the full customer record is already available.
func (r CustomerRef) Materialized() bool {
	return r.customer != nil
}

// Resolver maps provider customers onto local billing customers.
type Resolver struct {
	store    Store
	provider Provider
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the resolver logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a customer resolver.
// Panics if store or provider is nil.
func NewResolver(store Store, provider Provider, opts ...ResolverOption) *Resolver {
	if store == nil {
		panic("billing: Store is required")
	}
	if provider == nil {
		panic("billing: Provider is required")
	}
	r := &Resolver{
		store:    store,
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveOrCreate returns the billing customer for ref, creating it when the
// provider customer's email matches a local user.
//
// A nil customer with a nil error means the provider customer cannot be linked
// (no email, or no local user with that email). Calling it again with the same
// ref returns the same row: once a billing customer exists the lookup succeeds
// before any provider call or write.
func (r *Resolver) ResolveOrCreate(ctx context.Context, ref CustomerRef) (*BillingCustomer, error) {
	if ref.id == "" {
		return nil, ErrMissingCustomerReference
	}

	existing, err := r.store.GetBillingCustomerByProviderID(ctx, ref.id)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	if existing != nil {
		return existing, nil
	}

	customer := ref.customer
	if customer == nil {
		customer, err = r.provider.FetchCustomer(ctx, ref.id)
		if err != nil {
			return nil, errors.Join(ErrProviderRequest, err)
		}
	}

	if customer.Deleted || customer.Email == "" {
		r.logger.DebugContext(ctx, "provider customer has no email, skipping",
			logger.ProviderCustomerID(ref.id))
		return nil, nil
	}

	user, err := r.store.GetUserByEmail(ctx, customer.Email)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	if user == nil {
		r.logger.DebugContext(ctx, "no local user for provider customer",
			logger.ProviderCustomerID(ref.id))
		return nil, nil
	}

	created, err := r.store.CreateBillingCustomer(ctx, CreateBillingCustomerParams{
		UserID:             user.ID,
		ProviderCustomerID: ref.id,
	})
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}

	r.logger.InfoContext(ctx, "linked provider customer to user",
		logger.ProviderCustomerID(ref.id),
		logger.UserID(user.ID),
		logger.BillingCustomerID(created.ID))

	return created, nil
}
