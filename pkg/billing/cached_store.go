package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/billsync/pkg/cache"
)

// DefaultCustomerCacheSize is the number of billing customers kept by CachedStore.
const DefaultCustomerCacheSize = 1024

// CachedStore keeps billing customers in an LRU in front of another Store.
// Billing customers are immutable once created; the ttl only bounds how long
// a row deleted out of band can still be served. Misses are not cached
// because a customer may be linked later.
type CachedStore struct {
	Store
	customers *cache.Cache[string, BillingCustomer]
}

// NewCachedStore wraps next with a customer cache of the given size and ttl.
// A zero ttl keeps entries until evicted. Panics if next is nil.
func NewCachedStore(next Store, size int, ttl time.Duration) *CachedStore {
	if next == nil {
		panic("billing: Store is required")
	}
	if size <= 0 {
		size = DefaultCustomerCacheSize
	}
	return &CachedStore{
		Store:     next,
		customers: cache.New[string, BillingCustomer](size, cache.WithTTL(ttl)),
	}
}

// GetBillingCustomerByProviderID implements Store.
func (s *CachedStore) GetBillingCustomerByProviderID(ctx context.Context, providerCustomerID string) (*BillingCustomer, error) {
	if c, ok := s.customers.Get(providerCustomerID); ok {
		return &c, nil
	}
	c, err := s.Store.GetBillingCustomerByProviderID(ctx, providerCustomerID)
	if err != nil || c == nil {
		return c, err
	}
	s.customers.Put(providerCustomerID, *c)
	return c, nil
}

// CreateBillingCustomer implements Store.
func (s *CachedStore) CreateBillingCustomer(ctx context.Context, params CreateBillingCustomerParams) (*BillingCustomer, error) {
	c, err := s.Store.CreateBillingCustomer(ctx, params)
	if err != nil {
		return nil, err
	}
	s.customers.Put(c.ProviderCustomerID, *c)
	return c, nil
}

// CacheStats returns the customer cache counters.
func (s *CachedStore) CacheStats() cache.Stats {
	return s.customers.Stats()
}
