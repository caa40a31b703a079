package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

// MapStatus translates a Stripe subscription status into the local Status.
// The mapping is one-to-one; the switch has no default arm so the exhaustive
// linter reports SDK statuses missing here. Any other value returns
// ErrUnknownSubscriptionStatus.
func MapStatus(status stripe.SubscriptionStatus) (Status, error) {
	//exhaustive:enforce
	switch status {
	case stripe.SubscriptionStatusIncomplete:
		return StatusIncomplete, nil
	case stripe.SubscriptionStatusIncompleteExpired:
		return StatusIncompleteExpired, nil
	case stripe.SubscriptionStatusTrialing:
		return StatusTrialing, nil
	case stripe.SubscriptionStatusActive:
		return StatusActive, nil
	case stripe.SubscriptionStatusPastDue:
		return StatusPastDue, nil
	case stripe.SubscriptionStatusCanceled:
		return StatusCanceled, nil
	case stripe.SubscriptionStatusUnpaid:
		return StatusUnpaid, nil
	case stripe.SubscriptionStatusPaused:
		return StatusPaused, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSubscriptionStatus, status)
}
