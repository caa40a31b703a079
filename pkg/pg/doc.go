// Package pg bootstraps the Postgres pool used by the billing store.
//
// Connect opens a pgx pool with retries, Migrate applies goose migrations
// from an fs.FS (the billing schema is embedded by svc/billing), and
// Healthcheck adapts a pool into a readiness probe. The Is*Error helpers
// classify pgx and pgconn errors.
package pg
