package billing

import "errors"

var (
	ErrUserNotFound                = errors.New("user not found")
	ErrBillingCustomerNotFound     = errors.New("billing customer not found")
	ErrSubscriptionNotFound        = errors.New("subscription not found")
	ErrNoActiveSubscription        = errors.New("user has no active subscriptions")
	ErrMultipleActiveSubscriptions = errors.New("user has multiple active subscriptions")
	ErrUnsupportedIntent           = errors.New("unsupported subscription management intent")
	ErrMissingPriceID              = errors.New("billing price is not configured")
	ErrInvalidRequest              = errors.New("invalid request")
)
