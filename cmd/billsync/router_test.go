package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/pg"
	"github.com/dmitrymomot/billsync/pkg/requestid"
	svcbilling "github.com/dmitrymomot/billsync/svc/billing"
)

func testRouter(t *testing.T, checks ...httpserver.Check) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	deps := &dependencies{
		accounts: svcbilling.NewStore(mock),
		checks:   append([]httpserver.Check{{Name: "postgres", Probe: pg.Healthcheck(mock)}}, checks...),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newRouter(deps, billing.Config{}, log), mock
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	h, mock := testRouter(t, httpserver.Check{Name: "redis", Probe: func(context.Context) error {
		return errors.New("connection refused")
	}})
	mock.ExpectPing()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestid.Header))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "failing"}, body.Checks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_CheckoutWithoutStripe(t *testing.T) {
	t.Parallel()

	h, mock := testRouter(t)
	userID := uuid.New()
	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs(userID.String()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email"}).AddRow(userID.String(), "a@example.com"))

	req := httptest.NewRequest(http.MethodPost, "/billing/subscriptions", strings.NewReader(`{"user_id":"`+userID.String()+`"}`))
	req.Header.Set(requestid.Header, "req_test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "req_test", rec.Header().Get(requestid.Header))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_UnknownRoute(t *testing.T) {
	t.Parallel()

	h, _ := testRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/invoices", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
