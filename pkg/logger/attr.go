package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// EventType records the event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// ProviderEventID records the billing provider event identifier under the key "provider_event_id".
func ProviderEventID(id string) slog.Attr {
	return slog.String("provider_event_id", id)
}

// ProviderCustomerID records the billing provider customer identifier under the key "provider_customer_id".
func ProviderCustomerID(id string) slog.Attr {
	return slog.String("provider_customer_id", id)
}

// ProviderSubscriptionID records the billing provider subscription identifier
// under the key "provider_subscription_id".
func ProviderSubscriptionID(id string) slog.Attr {
	return slog.String("provider_subscription_id", id)
}

// BillingCustomerID records the local billing customer identifier under the key "billing_customer_id".
// If id is nil, it returns an empty Attr.
func BillingCustomerID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("billing_customer_id", id)
}

// Duration records an elapsed time under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
