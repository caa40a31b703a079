package billing

import "errors"

var (
	ErrUnknownSubscriptionStatus = errors.New("unknown provider subscription status")
	ErrUnexpectedPayload         = errors.New("unexpected event payload")
	ErrCustomerNotFound          = errors.New("billing customer not found")
	ErrMissingCustomerReference  = errors.New("subscription has no customer reference")

	ErrProviderRequest    = errors.New("billing provider request failed")
	ErrFetchEvents        = errors.New("failed to fetch billing provider events")
	ErrProviderNotEnabled = errors.New("billing provider is not configured")
	ErrMissingAPIKey      = errors.New("billing provider API key is required")

	ErrStore                 = errors.New("billing store operation failed")
	ErrInvalidSubscription   = errors.New("invalid billing subscription parameters")
	ErrInvalidCustomerParams = errors.New("invalid billing customer parameters")

	ErrLockNotAcquired = errors.New("poll cycle lock is held by another instance")
	ErrLockBackend     = errors.New("poll cycle lock backend failed")
	ErrPollPanicked    = errors.New("poll cycle panicked")
)
