package billing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It is safe for concurrent use and is
// meant for tests and local runs without Postgres.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]User                 // lower-cased email -> user
	customers     map[string]BillingCustomer      // provider customer ID -> customer
	subscriptions map[string]*BillingSubscription // provider subscription ID -> subscription
	now           func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]User),
		customers:     make(map[string]BillingCustomer),
		subscriptions: make(map[string]*BillingSubscription),
		now:           time.Now,
	}
}

// AddUser registers a host application user.
func (s *MemoryStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(u.Email)] = u
}

// GetUserByEmail implements Store.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// GetBillingCustomerByProviderID implements Store.
func (s *MemoryStore) GetBillingCustomerByProviderID(_ context.Context, providerCustomerID string) (*BillingCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[providerCustomerID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// CreateBillingCustomer implements Store.
func (s *MemoryStore) CreateBillingCustomer(_ context.Context, params CreateBillingCustomerParams) (*BillingCustomer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.customers[params.ProviderCustomerID]; ok {
		return &c, nil
	}
	c := BillingCustomer{
		ID:                 uuid.New(),
		UserID:             params.UserID,
		ProviderCustomerID: params.ProviderCustomerID,
		CreatedAt:          s.now().UTC(),
	}
	s.customers[params.ProviderCustomerID] = c
	return &c, nil
}

// UpsertBillingSubscription implements Store.
func (s *MemoryStore) UpsertBillingSubscription(_ context.Context, params UpsertBillingSubscriptionParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sub, ok := s.subscriptions[params.ProviderSubscriptionID]
	if !ok {
		s.subscriptions[params.ProviderSubscriptionID] = &BillingSubscription{
			ID:                     uuid.New(),
			BillingCustomerID:      params.BillingCustomerID,
			ProviderSubscriptionID: params.ProviderSubscriptionID,
			Status:                 params.Status,
			CreatedAt:              now,
			UpdatedAt:              now,
			LastEventAt:            params.EventCreatedAt,
		}
		return nil
	}

	if !params.EventCreatedAt.IsZero() && !sub.LastEventAt.Before(params.EventCreatedAt) {
		return nil
	}
	sub.BillingCustomerID = params.BillingCustomerID
	sub.Status = params.Status
	sub.UpdatedAt = now
	if params.EventCreatedAt.After(sub.LastEventAt) {
		sub.LastEventAt = params.EventCreatedAt
	}
	return nil
}

// Subscription returns a copy of the stored subscription, if any.
func (s *MemoryStore) Subscription(providerSubscriptionID string) (BillingSubscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[providerSubscriptionID]
	if !ok {
		return BillingSubscription{}, false
	}
	return *sub, true
}

// CustomerCount returns the number of stored billing customers.
func (s *MemoryStore) CustomerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers)
}

// SubscriptionCount returns the number of stored subscriptions.
func (s *MemoryStore) SubscriptionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscriptions)
}
