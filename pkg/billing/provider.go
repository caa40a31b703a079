package billing

import (
	"context"

	"github.com/stripe/stripe-go/v82"
)

// Provider is the read side of the billing provider used during reconciliation.
type Provider interface {
	// FetchCustomer retrieves a customer record. Fails on not-found or transport errors.
	FetchCustomer(ctx context.Context, customerID string) (*stripe.Customer, error)

	// ListEvents returns one page of events filtered server-side by type.
	ListEvents(ctx context.Context, params ListEventsParams) (*EventPage, error)
}

// ListEventsParams selects one page of the provider event feed.
type ListEventsParams struct {
	Types         []stripe.EventType
	Limit         int64
	StartingAfter string // ID of the last event of the previous page
}

// EventPage is a single page of provider events.
type EventPage struct {
	Events  []*stripe.Event
	HasMore bool
}

// Provider event types the reconciliation engine subscribes to.
const (
	EventCustomerCreated             stripe.EventType = "customer.created"
	EventCustomerSubscriptionCreated stripe.EventType = "customer.subscription.created"
	EventCustomerSubscriptionUpdated stripe.EventType = "customer.subscription.updated"
	EventCustomerSubscriptionPaused  stripe.EventType = "customer.subscription.paused"
	EventCustomerSubscriptionResumed stripe.EventType = "customer.subscription.resumed"
	EventCustomerSubscriptionDeleted stripe.EventType = "customer.subscription.deleted"
)

// ReconciledEventTypes returns the allow-list of event types requested from the provider.
func ReconciledEventTypes() []stripe.EventType {
	return []stripe.EventType{
		EventCustomerCreated,
		EventCustomerSubscriptionCreated,
		EventCustomerSubscriptionUpdated,
		EventCustomerSubscriptionPaused,
		EventCustomerSubscriptionResumed,
		EventCustomerSubscriptionDeleted,
	}
}

func isSubscriptionEvent(t stripe.EventType) bool {
	switch t {
	case EventCustomerSubscriptionCreated,
		EventCustomerSubscriptionUpdated,
		EventCustomerSubscriptionPaused,
		EventCustomerSubscriptionResumed,
		EventCustomerSubscriptionDeleted:
		return true
	}
	return false
}
