package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/dmitrymomot/billsync/pkg/billing"
)

func TestCustomerRef(t *testing.T) {
	t.Parallel()

	byID := billing.CustomerByID("cus_1")
	assert.Equal(t, "cus_1", byID.ID())
	assert.False(t, byID.Materialized())

	obj := billing.CustomerObject(&stripe.Customer{ID: "cus_2", Email: "b@example.com"})
	assert.Equal(t, "cus_2", obj.ID())
	assert.True(t, obj.Materialized())

	empty := billing.CustomerObject(nil)
	assert.Empty(t, empty.ID())
	assert.False(t, empty.Materialized())
}

func TestResolver_ResolveOrCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("existing customer skips provider and writes", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		provider := &mockProvider{}
		existing := &billing.BillingCustomer{ID: uuid.New(), UserID: uuid.New(), ProviderCustomerID: "cus_1"}
		store.On("GetBillingCustomerByProviderID", ctx, "cus_1").Return(existing, nil)

		r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
		got, err := r.ResolveOrCreate(ctx, billing.CustomerByID("cus_1"))

		require.NoError(t, err)
		assert.Equal(t, existing, got)
		provider.AssertNotCalled(t, "FetchCustomer", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "CreateBillingCustomer", mock.Anything, mock.Anything)
		store.AssertExpectations(t)
	})

	t.Run("fetches bare reference and links by email", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		provider := &mockProvider{}
		user := &billing.User{ID: uuid.New(), Email: "a@example.com"}
		created := &billing.BillingCustomer{ID: uuid.New(), UserID: user.ID, ProviderCustomerID: "cus_1", CreatedAt: time.Now()}

		store.On("GetBillingCustomerByProviderID", ctx, "cus_1").Return(nil, nil)
		provider.On("FetchCustomer", ctx, "cus_1").Return(&stripe.Customer{ID: "cus_1", Email: "a@example.com"}, nil)
		store.On("GetUserByEmail", ctx, "a@example.com").Return(user, nil)
		store.On("CreateBillingCustomer", ctx, billing.CreateBillingCustomerParams{
			UserID:             user.ID,
			ProviderCustomerID: "cus_1",
		}).Return(created, nil)

		r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
		got, err := r.ResolveOrCreate(ctx, billing.CustomerByID("cus_1"))

		require.NoError(t, err)
		assert.Equal(t, created, got)
		store.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("materialized reference is not fetched", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		provider := &mockProvider{}
		user := &billing.User{ID: uuid.New(), Email: "a@example.com"}
		created := &billing.BillingCustomer{ID: uuid.New(), UserID: user.ID, ProviderCustomerID: "cus_1"}

		store.On("GetBillingCustomerByProviderID", ctx, "cus_1").Return(nil, nil)
		store.On("GetUserByEmail", ctx, "a@example.com").Return(user, nil)
		store.On("CreateBillingCustomer", ctx, mock.Anything).Return(created, nil)

		r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
		got, err := r.ResolveOrCreate(ctx, billing.CustomerObject(&stripe.Customer{ID: "cus_1", Email: "a@example.com"}))

		require.NoError(t, err)
		assert.Equal(t, created, got)
		provider.AssertNotCalled(t, "FetchCustomer", mock.Anything, mock.Anything)
	})

	t.Run("customer without email is not linkable", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		provider := &mockProvider{}
		store.On("GetBillingCustomerByProviderID", ctx, "cus_1").Return(nil, nil)

		r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
		got, err := r.ResolveOrCreate(ctx, billing.CustomerObject(&stripe.Customer{ID: "cus_1"}))

		require.NoError(t, err)
		assert.Nil(t, got)
		store.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "CreateBillingCustomer", mock.Anything, mock.Anything)
	})

	t.Run("deleted customer is not linkable", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		provider := &mockProvider{}
		store.On("GetBillingCustomerByProviderID", ctx, "cus_1").Return(nil, nil)
		provider.On("FetchCustomer", ctx, "cus_1").Return(&stripe.Customer{ID: "cus_1", Deleted: true}, nil)

		r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
		got, err := r.ResolveOrCreate(ctx, billing.CustomerByID("cus_1"))

		require.NoError(t, err)
		assert.Nil(t, got)
		store.AssertNotCalled(t, "CreateBillingCustomer", mock.Anything, mock.Anything)
	})

	t.Run("no local user is not an error", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		provider := &mockProvider{}
		store.On("GetBillingCustomerByProviderID", ctx, "cus_1").Return(nil, nil)
		store.On("GetUserByEmail", ctx, "nobody@example.com").Return(nil, nil)

		r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
		got, err := r.ResolveOrCreate(ctx, billing.CustomerObject(&stripe.Customer{ID: "cus_1", Email: "nobody@example.com"}))

		require.NoError(t, err)
		assert.Nil(t, got)
		store.AssertNotCalled(t, "CreateBillingCustomer", mock.Anything, mock.Anything)
	})

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		provider := &mockProvider{}
		boom := errors.New("connection reset")
		store.On("GetBillingCustomerByProviderID", ctx, "cus_1").Return(nil, nil)
		provider.On("FetchCustomer", ctx, "cus_1").Return(nil, boom)

		r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
		got, err := r.ResolveOrCreate(ctx, billing.CustomerByID("cus_1"))

		assert.Nil(t, got)
		assert.ErrorIs(t, err, billing.ErrProviderRequest)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		provider := &mockProvider{}
		boom := errors.New("db down")
		store.On("GetBillingCustomerByProviderID", ctx, "cus_1").Return(nil, boom)

		r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))
		_, err := r.ResolveOrCreate(ctx, billing.CustomerByID("cus_1"))

		assert.ErrorIs(t, err, billing.ErrStore)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty reference", func(t *testing.T) {
		t.Parallel()
		r := billing.NewResolver(&mockStore{}, &mockProvider{})
		_, err := r.ResolveOrCreate(ctx, billing.CustomerByID(""))
		assert.ErrorIs(t, err, billing.ErrMissingCustomerReference)
	})
}

func TestResolver_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := billing.NewMemoryStore()
	store.AddUser(billing.User{ID: uuid.New(), Email: "A@Example.com"})
	provider := &feedProvider{customers: map[string]*stripe.Customer{
		"cus_1": {ID: "cus_1", Email: "a@example.com"},
	}}
	r := billing.NewResolver(store, provider, billing.WithResolverLogger(discardLogger()))

	first, err := r.ResolveOrCreate(ctx, billing.CustomerByID("cus_1"))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := r.ResolveOrCreate(ctx, billing.CustomerByID("cus_1"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.CustomerCount())
	assert.Len(t, provider.Fetches(), 1, "second resolve must hit the store fast path")
}

func TestNewResolver_Panics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { billing.NewResolver(nil, &mockProvider{}) })
	assert.Panics(t, func() { billing.NewResolver(&mockStore{}, nil) })
}
