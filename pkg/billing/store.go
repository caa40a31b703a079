package billing

import "context"

// Store is the persistence contract consumed by the reconciliation engine.
// Lookups return (nil, nil) when the record does not exist.
type Store interface {
	// GetUserByEmail finds a host application user by email (case-insensitive).
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetBillingCustomerByProviderID finds the local customer for a provider customer ID.
	GetBillingCustomerByProviderID(ctx context.Context, providerCustomerID string) (*BillingCustomer, error)

	// CreateBillingCustomer inserts a billing customer. When a row with the same
	// provider customer ID already exists the existing row is returned instead.
	CreateBillingCustomer(ctx context.Context, params CreateBillingCustomerParams) (*BillingCustomer, error)

	// UpsertBillingSubscription atomically inserts or updates the subscription
	// keyed by its provider subscription ID.
	UpsertBillingSubscription(ctx context.Context, params UpsertBillingSubscriptionParams) error
}
