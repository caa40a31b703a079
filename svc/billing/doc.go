// Package billing is the Postgres and HTTP side of the billing reconciler.
//
// Store implements the reconciliation store from pkg/billing on top of pgx,
// building queries with squirrel. Subscription writes are a single
// INSERT ... ON CONFLICT statement, and billing customers are created with
// ON CONFLICT DO NOTHING followed by a re-read, so concurrent writers converge
// on one row per provider customer. Schema migrations are embedded and exposed
// through Migrations for pg.Migrate.
//
// Service and Handler expose the two user-facing flows:
//
//	POST /billing/subscriptions         start a subscription checkout
//	POST /billing/subscriptions/manage  open the billing portal to cancel
//
// Both respond with 501 Not Implemented when no provider key is configured.
package billing
