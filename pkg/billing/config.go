package billing

import "time"

// Config holds billing provider and reconciliation settings.
// An empty StripeAPIKey disables polling and the checkout endpoints.
type Config struct {
	StripeAPIKey  string `env:"STRIPE_API_KEY"`                            // StripeAPIKey is the secret key used for provider API calls.
	StripePriceID string `env:"STRIPE_PRICE_ID"`                           // StripePriceID is the price offered by the checkout endpoint.
	StripeAPIURL  string `env:"STRIPE_API_URL"`                            // StripeAPIURL overrides the provider API base URL (stripe-mock, tests).
	MaxRetries    int64  `env:"STRIPE_MAX_NETWORK_RETRIES" envDefault:"2"` // MaxRetries is the number of SDK retries for idempotent requests.

	PollInterval time.Duration `env:"BILLING_POLL_INTERVAL" envDefault:"5m"`            // PollInterval is the sleep between two poll cycles.
	PageSize     int64         `env:"BILLING_EVENTS_PAGE_SIZE" envDefault:"100"`        // PageSize is the number of events requested per page (max 100).
	LockKey      string        `env:"BILLING_LOCK_KEY" envDefault:"billsync:poll-lock"` // LockKey is the shared lock key guarding poll cycles.
	LockTTL      time.Duration `env:"BILLING_LOCK_TTL" envDefault:"10m"`                // LockTTL bounds how long a crashed instance can hold the cycle lock.

	CheckoutSuccessURL string `env:"BILLING_CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:8080/billing/success"` // CheckoutSuccessURL is where checkout redirects after payment.
	PortalReturnURL    string `env:"BILLING_PORTAL_RETURN_URL" envDefault:"http://localhost:8080/billing"`           // PortalReturnURL is where the billing portal returns to.

	CustomerCacheSize int           `env:"BILLING_CUSTOMER_CACHE_SIZE" envDefault:"1024"` // CustomerCacheSize is the number of billing customers kept in memory.
	CustomerCacheTTL  time.Duration `env:"BILLING_CUSTOMER_CACHE_TTL" envDefault:"1h"`    // CustomerCacheTTL bounds how long a cached customer is served.
}

// Enabled reports whether provider credentials are configured.
func (c Config) Enabled() bool {
	return c.StripeAPIKey != ""
}
