package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/requestid"
	svcbilling "github.com/dmitrymomot/billsync/svc/billing"
)

const readinessTimeout = 2 * time.Second

func newRouter(deps *dependencies, cfg billing.Config, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, readinessTimeout, deps.checks...))

	svc := svcbilling.NewService(deps.accounts, deps.sessions, cfg, svcbilling.WithServiceLogger(log))
	r.Mount("/", svcbilling.NewHandler(svc, log).Routes())
	return r
}
