package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

func TestMapStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   stripe.SubscriptionStatus
		want billing.Status
	}{
		{stripe.SubscriptionStatusIncomplete, billing.StatusIncomplete},
		{stripe.SubscriptionStatusIncompleteExpired, billing.StatusIncompleteExpired},
		{stripe.SubscriptionStatusTrialing, billing.StatusTrialing},
		{stripe.SubscriptionStatusActive, billing.StatusActive},
		{stripe.SubscriptionStatusPastDue, billing.StatusPastDue},
		{stripe.SubscriptionStatusCanceled, billing.StatusCanceled},
		{stripe.SubscriptionStatusUnpaid, billing.StatusUnpaid},
		{stripe.SubscriptionStatusPaused, billing.StatusPaused},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			t.Parallel()
			got, err := billing.MapStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapStatus_Bijection(t *testing.T) {
	t.Parallel()

	seen := make(map[billing.Status]stripe.SubscriptionStatus)
	for _, local := range billing.Statuses() {
		got, err := billing.MapStatus(stripe.SubscriptionStatus(local))
		require.NoError(t, err, "status %s has no provider counterpart", local)
		_, dup := seen[got]
		assert.False(t, dup, "status %s mapped twice", got)
		seen[got] = stripe.SubscriptionStatus(local)
	}
	assert.Len(t, seen, len(billing.Statuses()))
}

func TestMapStatus_Unknown(t *testing.T) {
	t.Parallel()

	for _, in := range []stripe.SubscriptionStatus{"", "archived", "ACTIVE"} {
		got, err := billing.MapStatus(in)
		assert.ErrorIs(t, err, billing.ErrUnknownSubscriptionStatus)
		assert.Empty(t, got)
	}
}

func TestStatus_Helpers(t *testing.T) {
	t.Parallel()

	for _, s := range billing.Statuses() {
		assert.True(t, s.Valid())
	}
	assert.False(t, billing.Status("gone").Valid())

	assert.True(t, billing.StatusActive.IsActive())
	assert.True(t, billing.StatusTrialing.IsActive())
	assert.False(t, billing.StatusPastDue.IsActive())
	assert.False(t, billing.StatusCanceled.IsActive())
	assert.Equal(t, "past_due", billing.StatusPastDue.String())
}
