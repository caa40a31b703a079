package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// Dispatcher routes provider events to the customer resolver and the
// subscription upserter.
type Dispatcher struct {
	resolver *Resolver
	upserter *Upserter
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates an event dispatcher.
// Panics if resolver or upserter is nil.
func NewDispatcher(resolver *Resolver, upserter *Upserter, opts ...DispatcherOption) *Dispatcher {
	if resolver == nil {
		panic("billing: Resolver is required")
	}
	if upserter == nil {
		panic("billing: Upserter is required")
	}
	d := &Dispatcher{
		resolver: resolver,
		upserter: upserter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes a single event according to its declared type.
// Event types outside the reconciled set are ignored.
func (d *Dispatcher) Handle(ctx context.Context, evt *stripe.Event) error {
	if evt == nil {
		return ErrUnexpectedPayload
	}

	switch {
	case evt.Type == EventCustomerCreated:
		return d.handleCustomerEvent(ctx, evt)
	case isSubscriptionEvent(evt.Type):
		return d.handleSubscriptionEvent(ctx, evt)
	default:
		return nil
	}
}

// HandleAll processes events in order. A failing or panicking event is logged
// and skipped; the remaining events are still processed. It returns the number
// of events that failed.
func (d *Dispatcher) HandleAll(ctx context.Context, events []*stripe.Event) int {
	failed := 0
	for _, evt := range events {
		if err := d.safeHandle(ctx, evt); err != nil {
			failed++
			d.logger.ErrorContext(ctx, "failed to handle billing event",
				eventAttrs(evt, err)...)
		}
	}
	return failed
}

func (d *Dispatcher) safeHandle(ctx context.Context, evt *stripe.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in event handler: %v", r)
		}
	}()
	return d.Handle(ctx, evt)
}

func (d *Dispatcher) handleCustomerEvent(ctx context.Context, evt *stripe.Event) error {
	raw, err := payload(evt, "customer")
	if err != nil {
		return err
	}

	var customer stripe.Customer
	if err := json.Unmarshal(raw.data, &customer); err != nil {
		return errors.Join(ErrUnexpectedPayload, err)
	}

	// A customer without a matching local user is not an error.
	if _, err := d.resolver.ResolveOrCreate(ctx, CustomerObject(&customer)); err != nil {
		return err
	}
	return nil
}

func (d *Dispatcher) handleSubscriptionEvent(ctx context.Context, evt *stripe.Event) error {
	raw, err := payload(evt, "subscription")
	if err != nil {
		return err
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(raw.data, &sub); err != nil {
		return errors.Join(ErrUnexpectedPayload, err)
	}
	if sub.ID == "" {
		return fmt.Errorf("%w: subscription without id in event %s", ErrUnexpectedPayload, evt.ID)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return ErrMissingCustomerReference
	}

	status, err := MapStatus(sub.Status)
	if err != nil {
		return err
	}

	ref := CustomerByID(sub.Customer.ID)
	if raw.customerExpanded {
		ref = CustomerObject(sub.Customer)
	}

	customer, err := d.resolver.ResolveOrCreate(ctx, ref)
	if err != nil {
		return err
	}
	if customer == nil {
		return fmt.Errorf("%w: provider customer %s", ErrCustomerNotFound, ref.ID())
	}

	return d.upserter.Upsert(ctx, UpsertParams{
		BillingCustomerID:      customer.ID,
		ProviderSubscriptionID: sub.ID,
		Status:                 status,
		EventCreatedAt:         eventTime(evt),
	})
}

type eventPayload struct {
	data             json.RawMessage
	customerExpanded bool
}

// payload returns the raw embedded object after checking it has the expected type.
func payload(evt *stripe.Event, wantObject string) (eventPayload, error) {
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return eventPayload{}, fmt.Errorf("%w: empty data in event %s", ErrUnexpectedPayload, evt.ID)
	}

	var head struct {
		Object   string          `json:"object"`
		Customer json.RawMessage `json:"customer"`
	}
	if err := json.Unmarshal(evt.Data.Raw, &head); err != nil {
		return eventPayload{}, errors.Join(ErrUnexpectedPayload, err)
	}
	if head.Object != wantObject {
		return eventPayload{}, fmt.Errorf("%w: %s event %s carries %q object",
			ErrUnexpectedPayload, evt.Type, evt.ID, head.Object)
	}

	return eventPayload{
		data:             evt.Data.Raw,
		customerExpanded: bytes.HasPrefix(bytes.TrimSpace(head.Customer), []byte("{")),
	}, nil
}

func eventTime(evt *stripe.Event) time.Time {
	if evt.Created == 0 {
		return time.Time{}
	}
	return time.Unix(evt.Created, 0).UTC()
}

func eventAttrs(evt *stripe.Event, err error) []any {
	if evt == nil {
		return []any{logger.Error(err)}
	}
	return []any{
		logger.ProviderEventID(evt.ID),
		logger.EventType(string(evt.Type)),
		logger.Error(err),
	}
}
