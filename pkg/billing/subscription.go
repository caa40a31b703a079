package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UpsertParams describes one observed state of a provider subscription.
type UpsertParams struct {
	BillingCustomerID      uuid.UUID
	ProviderSubscriptionID string
	Status                 Status
	EventCreatedAt         time.Time
}

// Upserter writes provider subscriptions into the local store.
type Upserter struct {
	store Store
}

// NewUpserter creates a subscription upserter.
// Panics if store is nil.
func NewUpserter(store Store) *Upserter {
	if store == nil {
		panic("billing: Store is required")
	}
	return &Upserter{store: store}
}

// Upsert inserts the subscription or updates its customer and status in place.
// The write is a single atomic statement keyed on the provider subscription ID.
func (u *Upserter) Upsert(ctx context.Context, p UpsertParams) error {
	params := UpsertBillingSubscriptionParams{
		BillingCustomerID:      p.BillingCustomerID,
		ProviderSubscriptionID: p.ProviderSubscriptionID,
		Status:                 p.Status,
		EventCreatedAt:         p.EventCreatedAt,
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if err := u.store.UpsertBillingSubscription(ctx, params); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}
