package billing

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	core "github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/pg"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	usersTable         = "users"
	customersTable     = "billing_customers"
	subscriptionsTable = "billing_subscriptions"
)

var (
	customerColumns     = []string{"id", "user_id", "provider_customer_id", "created_at"}
	subscriptionColumns = []string{
		"s.id", "s.billing_customer_id", "s.provider_subscription_id", "s.status",
		"s.created_at", "s.updated_at", "s.last_event_at",
	}
)

const upsertSubscriptionConflict = `ON CONFLICT (provider_subscription_id) DO UPDATE SET
	billing_customer_id = EXCLUDED.billing_customer_id,
	status = EXCLUDED.status,
	updated_at = now(),
	last_event_at = GREATEST(billing_subscriptions.last_event_at, EXCLUDED.last_event_at)
WHERE billing_subscriptions.last_event_at IS NULL
	OR EXCLUDED.last_event_at IS NULL
	OR billing_subscriptions.last_event_at < EXCLUDED.last_event_at`

var _ core.Store = (*Store)(nil)

// Store is the Postgres implementation of the reconciliation store plus the
// lookups used by the checkout endpoints.
type Store struct {
	db   DBTX
	psql sq.StatementBuilderType
}

// NewStore creates a Postgres-backed store.
// Panics if db is nil.
func NewStore(db DBTX) *Store {
	if db == nil {
		panic("billing: database handle is required")
	}
	return &Store{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetUserByEmail implements core.Store. Matching is case-insensitive.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	query, args, err := s.psql.
		Select("id", "email").
		From(usersTable).
		Where("lower(email) = lower(?)", email).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanUser(s.db.QueryRow(ctx, query, args...))
}

// GetUserByID returns the user or (nil, nil).
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	query, args, err := s.psql.
		Select("id", "email").
		From(usersTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanUser(s.db.QueryRow(ctx, query, args...))
}

// GetBillingCustomerByProviderID implements core.Store.
func (s *Store) GetBillingCustomerByProviderID(ctx context.Context, providerCustomerID string) (*core.BillingCustomer, error) {
	query, args, err := s.psql.
		Select(customerColumns...).
		From(customersTable).
		Where(sq.Eq{"provider_customer_id": providerCustomerID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanCustomer(s.db.QueryRow(ctx, query, args...))
}

// GetBillingCustomerByUserID returns the most recent billing customer of a user or (nil, nil).
func (s *Store) GetBillingCustomerByUserID(ctx context.Context, userID uuid.UUID) (*core.BillingCustomer, error) {
	query, args, err := s.psql.
		Select(customerColumns...).
		From(customersTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanCustomer(s.db.QueryRow(ctx, query, args...))
}

// CreateBillingCustomer implements core.Store. The insert is conditional on
// the provider customer ID; when another writer got there first its row is returned.
func (s *Store) CreateBillingCustomer(ctx context.Context, params core.CreateBillingCustomerParams) (*core.BillingCustomer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query, args, err := s.psql.
		Insert(customersTable).
		Columns("id", "user_id", "provider_customer_id").
		Values(uuid.New(), params.UserID, params.ProviderCustomerID).
		Suffix("ON CONFLICT (provider_customer_id) DO NOTHING RETURNING id, user_id, provider_customer_id, created_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	c, err := scanCustomer(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return nil, errors.Join(core.ErrInvalidCustomerParams, err)
		}
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	existing, err := s.GetBillingCustomerByProviderID(ctx, params.ProviderCustomerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, core.ErrCustomerNotFound
	}
	return existing, nil
}

// UpsertBillingSubscription implements core.Store as a single statement. Rows
// already updated by an event from the same second or later are left untouched.
func (s *Store) UpsertBillingSubscription(ctx context.Context, params core.UpsertBillingSubscriptionParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	var lastEventAt *time.Time
	if !params.EventCreatedAt.IsZero() {
		t := params.EventCreatedAt.UTC()
		lastEventAt = &t
	}

	query, args, err := s.psql.
		Insert(subscriptionsTable).
		Columns("id", "billing_customer_id", "provider_subscription_id", "status", "last_event_at").
		Values(uuid.New(), params.BillingCustomerID, params.ProviderSubscriptionID, string(params.Status), lastEventAt).
		Suffix(upsertSubscriptionConflict).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		if pg.IsCheckViolationError(err) || pg.IsForeignKeyViolationError(err) {
			return errors.Join(core.ErrInvalidSubscription, err)
		}
		return err
	}
	return nil
}

// GetBillingSubscriptionByID returns a subscription by its local ID or (nil, nil).
func (s *Store) GetBillingSubscriptionByID(ctx context.Context, id uuid.UUID) (*core.BillingSubscription, error) {
	query, args, err := s.psql.
		Select(subscriptionColumns...).
		From(subscriptionsTable + " s").
		Where(sq.Eq{"s.id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	subs, err := collectSubscriptions(rows)
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	return &subs[0], nil
}

// ListActiveBillingSubscriptions returns the active and trialing subscriptions of a user.
func (s *Store) ListActiveBillingSubscriptions(ctx context.Context, userID uuid.UUID) ([]core.BillingSubscription, error) {
	query, args, err := s.psql.
		Select(subscriptionColumns...).
		From(subscriptionsTable + " s").
		Join(customersTable + " c ON c.id = s.billing_customer_id").
		Where(sq.Eq{
			"c.user_id": userID,
			"s.status":  []string{string(core.StatusActive), string(core.StatusTrialing)},
		}).
		OrderBy("s.created_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSubscriptions(rows)
}

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Email); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func scanCustomer(row pgx.Row) (*core.BillingCustomer, error) {
	var c core.BillingCustomer
	if err := row.Scan(&c.ID, &c.UserID, &c.ProviderCustomerID, &c.CreatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func collectSubscriptions(rows pgx.Rows) ([]core.BillingSubscription, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.BillingSubscription, error) {
		var (
			sub         core.BillingSubscription
			status      string
			lastEventAt pgtype.Timestamptz
		)
		if err := row.Scan(
			&sub.ID, &sub.BillingCustomerID, &sub.ProviderSubscriptionID, &status,
			&sub.CreatedAt, &sub.UpdatedAt, &lastEventAt,
		); err != nil {
			return sub, err
		}
		sub.Status = core.Status(status)
		if lastEventAt.Valid {
			sub.LastEventAt = lastEventAt.Time
		}
		return sub, nil
	})
}
