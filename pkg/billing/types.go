package billing

import (
	"time"

	"github.com/google/uuid"
)

// Status is the locally stored subscription status.
// The set is closed: it mirrors the provider's subscription lifecycle one-to-one.
type Status string

const (
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusPaused            Status = "paused"
)

// Statuses returns every local status in declaration order.
func Statuses() []Status {
	return []Status{
		StatusIncomplete,
		StatusIncompleteExpired,
		StatusTrialing,
		StatusActive,
		StatusPastDue,
		StatusCanceled,
		StatusUnpaid,
		StatusPaused,
	}
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusIncomplete, StatusIncompleteExpired, StatusTrialing, StatusActive,
		StatusPastDue, StatusCanceled, StatusUnpaid, StatusPaused:
		return true
	}
	return false
}

// IsActive reports whether the subscription currently grants access.
// Trialing subscriptions count as active.
func (s Status) IsActive() bool {
	return s == StatusActive || s == StatusTrialing
}

func (s Status) String() string {
	return string(s)
}

// User is the read-only projection of a host application user.
type User struct {
	ID    uuid.UUID
	Email string
}

// BillingCustomer links a local user to a provider customer.
// Rows are created once and never mutated afterwards.
type BillingCustomer struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	ProviderCustomerID string
	CreatedAt          time.Time
}

// BillingSubscription is the local copy of a provider subscription.
// ProviderSubscriptionID is unique and acts as the upsert key.
type BillingSubscription struct {
	ID                     uuid.UUID
	BillingCustomerID      uuid.UUID
	ProviderSubscriptionID string
	Status                 Status
	CreatedAt              time.Time
	UpdatedAt              time.Time
	LastEventAt            time.Time // creation time of the newest provider event applied
}

// CreateBillingCustomerParams holds the fields for a new billing customer.
type CreateBillingCustomerParams struct {
	UserID             uuid.UUID
	ProviderCustomerID string
}

// UpsertBillingSubscriptionParams holds the fields written by a subscription upsert.
type UpsertBillingSubscriptionParams struct {
	BillingCustomerID      uuid.UUID
	ProviderSubscriptionID string
	Status                 Status
	// EventCreatedAt orders concurrent updates: a stored row with a newer
	// LastEventAt is left untouched. Zero means "apply unconditionally".
	EventCreatedAt time.Time
}

// Validate checks required upsert fields.
func (p UpsertBillingSubscriptionParams) Validate() error {
	if p.BillingCustomerID == uuid.Nil || p.ProviderSubscriptionID == "" || !p.Status.Valid() {
		return ErrInvalidSubscription
	}
	return nil
}

// Validate checks required customer fields.
func (p CreateBillingCustomerParams) Validate() error {
	if p.UserID == uuid.Nil || p.ProviderCustomerID == "" {
		return ErrInvalidCustomerParams
	}
	return nil
}
