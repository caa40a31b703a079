package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	core "github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/logger"
)

// Intent is the reason a user opens the billing portal.
type Intent string

const (
	IntentCancel Intent = "cancel"
)

// SessionProvider creates hosted checkout and portal sessions.
type SessionProvider interface {
	CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, params core.CheckoutSessionParams) (string, error)
	CreateCancelPortalSession(ctx context.Context, customerID, subscriptionID, returnURL string) (string, error)
}

// AccountStore is the read side used by the checkout endpoints.
type AccountStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*core.User, error)
	GetBillingCustomerByUserID(ctx context.Context, userID uuid.UUID) (*core.BillingCustomer, error)
	GetBillingSubscriptionByID(ctx context.Context, id uuid.UUID) (*core.BillingSubscription, error)
	ListActiveBillingSubscriptions(ctx context.Context, userID uuid.UUID) ([]core.BillingSubscription, error)
}

// ManageRequest asks for a billing portal session for one subscription.
// A nil SubscriptionID selects the user's only active subscription.
type ManageRequest struct {
	UserID         uuid.UUID
	Intent         Intent
	SubscriptionID *uuid.UUID
}

// Service starts checkout and subscription management flows.
type Service struct {
	store      AccountStore
	provider   SessionProvider
	priceID    string
	successURL string
	returnURL  string
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates the checkout service. provider may be nil when the billing
// provider is not configured; every call then fails with core.ErrProviderNotEnabled.
// Panics if store is nil.
func NewService(store AccountStore, provider SessionProvider, cfg core.Config, opts ...ServiceOption) *Service {
	if store == nil {
		panic("billing: AccountStore is required")
	}
	s := &Service{
		store:      store,
		provider:   provider,
		priceID:    cfg.StripePriceID,
		successURL: cfg.CheckoutSuccessURL,
		returnURL:  cfg.PortalReturnURL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCheckoutSession returns the URL of a subscription checkout for userID.
// The user's existing provider customer is reused; otherwise a new one is created.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", errors.Join(core.ErrStore, err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	if s.provider == nil {
		s.logger.ErrorContext(ctx, "billing provider is not configured")
		return "", core.ErrProviderNotEnabled
	}
	if s.priceID == "" {
		s.logger.ErrorContext(ctx, "billing price is not configured")
		return "", errors.Join(core.ErrProviderNotEnabled, ErrMissingPriceID)
	}

	customerID, err := s.providerCustomerID(ctx, user)
	if err != nil {
		return "", err
	}

	url, err := s.provider.CreateCheckoutSession(ctx, core.CheckoutSessionParams{
		CustomerID:        customerID,
		PriceID:           s.priceID,
		SuccessURL:        s.successURL,
		ClientReferenceID: user.ID.String(),
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "checkout session created",
		logger.UserID(user.ID),
		logger.ProviderCustomerID(customerID))
	return url, nil
}

// ManageSubscription returns the URL of a billing portal session for req.
func (s *Service) ManageSubscription(ctx context.Context, req ManageRequest) (string, error) {
	if req.Intent != IntentCancel {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedIntent, req.Intent)
	}

	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return "", errors.Join(core.ErrStore, err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	if s.provider == nil {
		s.logger.ErrorContext(ctx, "billing provider is not configured")
		return "", core.ErrProviderNotEnabled
	}

	customer, err := s.store.GetBillingCustomerByUserID(ctx, user.ID)
	if err != nil {
		return "", errors.Join(core.ErrStore, err)
	}
	if customer == nil {
		return "", ErrBillingCustomerNotFound
	}

	sub, err := s.subscriptionFor(ctx, user.ID, req.SubscriptionID)
	if err != nil {
		return "", err
	}
	if sub.BillingCustomerID != customer.ID {
		return "", ErrSubscriptionNotFound
	}

	url, err := s.provider.CreateCancelPortalSession(ctx, customer.ProviderCustomerID, sub.ProviderSubscriptionID, s.returnURL)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "billing portal session created",
		logger.UserID(user.ID),
		logger.ProviderSubscriptionID(sub.ProviderSubscriptionID))
	return url, nil
}

func (s *Service) providerCustomerID(ctx context.Context, user *core.User) (string, error) {
	existing, err := s.store.GetBillingCustomerByUserID(ctx, user.ID)
	if err != nil {
		return "", errors.Join(core.ErrStore, err)
	}
	if existing != nil {
		return existing.ProviderCustomerID, nil
	}
	// The local billing customer row is created later by the reconciler
	// when it sees the customer.created event.
	return s.provider.CreateCustomer(ctx, user.ID, user.Email)
}

func (s *Service) subscriptionFor(ctx context.Context, userID uuid.UUID, id *uuid.UUID) (*core.BillingSubscription, error) {
	if id != nil {
		sub, err := s.store.GetBillingSubscriptionByID(ctx, *id)
		if err != nil {
			return nil, errors.Join(core.ErrStore, err)
		}
		if sub == nil {
			return nil, ErrSubscriptionNotFound
		}
		return sub, nil
	}

	subs, err := s.store.ListActiveBillingSubscriptions(ctx, userID)
	if err != nil {
		return nil, errors.Join(core.ErrStore, err)
	}
	switch len(subs) {
	case 0:
		return nil, ErrNoActiveSubscription
	case 1:
		return &subs[0], nil
	default:
		return nil, ErrMultipleActiveSubscriptions
	}
}
