package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	core "github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/logger"
)

const maxBodyBytes = 1 << 16

type createSubscriptionRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type createSubscriptionResponse struct {
	CheckoutSessionURL string `json:"checkout_session_url"`
}

type manageSubscriptionRequest struct {
	UserID         uuid.UUID  `json:"user_id"`
	Intent         Intent     `json:"intent"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
}

type manageSubscriptionResponse struct {
	BillingPortalSessionURL string `json:"billing_portal_session_url"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler exposes the checkout service over HTTP.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the billing HTTP handler.
// Panics if svc is nil.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if svc == nil {
		panic("billing: Service is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, logger: log}
}

// Routes returns the billing routes, to be mounted at the application root.
//
//	POST /billing/subscriptions         {user_id}                          -> {checkout_session_url}
//	POST /billing/subscriptions/manage  {user_id, intent, subscription_id?} -> {billing_portal_session_url}
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/billing/subscriptions", func(r chi.Router) {
		r.Post("/", h.createSubscription)
		r.Post("/manage", h.manageSubscription)
	})
	return r
}

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID == uuid.Nil {
		h.writeError(w, r, ErrInvalidRequest)
		return
	}

	url, err := h.svc.CreateCheckoutSession(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createSubscriptionResponse{CheckoutSessionURL: url})
}

func (h *Handler) manageSubscription(w http.ResponseWriter, r *http.Request) {
	var req manageSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID == uuid.Nil {
		h.writeError(w, r, ErrInvalidRequest)
		return
	}

	url, err := h.svc.ManageSubscription(r.Context(), ManageRequest{
		UserID:         req.UserID,
		Intent:         req.Intent,
		SubscriptionID: req.SubscriptionID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, manageSubscriptionResponse{BillingPortalSessionURL: url})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "billing request failed", logger.Error(err))
	} else {
		h.logger.WarnContext(r.Context(), "billing request rejected", logger.Error(err))
	}

	message := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnsupportedIntent):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrBillingCustomerNotFound),
		errors.Is(err, ErrSubscriptionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrNoActiveSubscription), errors.Is(err, ErrMultipleActiveSubscriptions):
		return http.StatusConflict, "conflict"
	case errors.Is(err, core.ErrProviderNotEnabled):
		return http.StatusNotImplemented, "not_supported"
	case errors.Is(err, core.ErrProviderRequest):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
