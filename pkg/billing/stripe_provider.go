package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// StripeProvider talks to the Stripe API with a per-instance client, so
// several providers with different keys or backends can coexist.
type StripeProvider struct {
	api    *client.API
	logger *slog.Logger
}

// StripeOption configures a StripeProvider.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	logger *slog.Logger
}

// WithStripeLogger routes SDK diagnostics through l.
func WithStripeLogger(l *slog.Logger) StripeOption {
	return func(o *stripeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewStripeProvider creates a provider from cfg. cfg.StripeAPIURL replaces the
// default API endpoint when set.
func NewStripeProvider(cfg Config, opts ...StripeOption) (*StripeProvider, error) {
	if cfg.StripeAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	o := &stripeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		LeveledLogger:     &stripeLogger{logger: o.logger},
	}
	if cfg.StripeAPIURL != "" {
		backendCfg.URL = stripe.String(cfg.StripeAPIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	api := &client.API{}
	api.Init(cfg.StripeAPIKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &StripeProvider{api: api, logger: o.logger}, nil
}

// FetchCustomer implements Provider.
func (p *StripeProvider) FetchCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := p.api.Customers.Get(customerID, params)
	if err != nil {
		if isResourceMissing(err) {
			return nil, fmt.Errorf("%w: provider customer %s", ErrCustomerNotFound, customerID)
		}
		return nil, fmt.Errorf("retrieve customer %s: %w", customerID, err)
	}
	return c, nil
}

// ListEvents implements Provider. It requests exactly one page.
func (p *StripeProvider) ListEvents(ctx context.Context, lp ListEventsParams) (*EventPage, error) {
	params := &stripe.EventListParams{}
	params.Context = ctx
	params.Single = true
	if lp.Limit > 0 {
		params.Limit = stripe.Int64(lp.Limit)
	}
	if lp.StartingAfter != "" {
		params.StartingAfter = stripe.String(lp.StartingAfter)
	}
	for _, t := range lp.Types {
		params.Types = append(params.Types, stripe.String(string(t)))
	}

	iter := p.api.Events.List(params)
	page := &EventPage{}
	for iter.Next() {
		page.Events = append(page.Events, iter.Event())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if meta := iter.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

// CreateCustomer creates a Stripe customer for a local user and returns its ID.
func (p *StripeProvider) CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", errors.Join(ErrProviderRequest, err)
	}
	return c.ID, nil
}

// CheckoutSessionParams describes a subscription checkout.
type CheckoutSessionParams struct {
	CustomerID        string
	PriceID           string
	SuccessURL        string
	ClientReferenceID string
}

// CreateCheckoutSession opens a subscription-mode checkout for one unit of the
// price and returns the hosted page URL.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cp CheckoutSessionParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(cp.CustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(cp.SuccessURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(cp.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	if cp.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(cp.ClientReferenceID)
	}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", errors.Join(ErrProviderRequest, err)
	}
	if s.URL == "" {
		return "", fmt.Errorf("%w: checkout session %s has no url", ErrProviderRequest, s.ID)
	}
	return s.URL, nil
}

// CreateCancelPortalSession opens a billing portal session that walks the
// customer through cancelling subscriptionID, then redirects to returnURL.
func (p *StripeProvider) CreateCancelPortalSession(ctx context.Context, customerID, subscriptionID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
		FlowData: &stripe.BillingPortalSessionFlowDataParams{
			Type: stripe.String("subscription_cancel"),
			SubscriptionCancel: &stripe.BillingPortalSessionFlowDataSubscriptionCancelParams{
				Subscription: stripe.String(subscriptionID),
			},
			AfterCompletion: &stripe.BillingPortalSessionFlowDataAfterCompletionParams{
				Type: stripe.String("redirect"),
				Redirect: &stripe.BillingPortalSessionFlowDataAfterCompletionRedirectParams{
					ReturnURL: stripe.String(returnURL),
				},
			},
		},
	}
	params.Context = ctx

	s, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", errors.Join(ErrProviderRequest, err)
	}
	return s.URL, nil
}

func isResourceMissing(err error) bool {
	var se *stripe.Error
	return errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing
}

// stripeLogger adapts slog to the SDK's leveled logger interface.
type stripeLogger struct {
	logger *slog.Logger
}

func (l *stripeLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), logger.Component("stripe"))
}

func (l *stripeLogger) Infof(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), logger.Component("stripe"))
}

func (l *stripeLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), logger.Component("stripe"))
}

func (l *stripeLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), logger.Component("stripe"))
}
