package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billing/pkg/pg"
	"github.com/dmitrymomot/billing/pkg/subscription"
)

// activePairIndex is the partial unique index guarding one active row per pair.
const activePairIndex = "user_subscriptions_active_pair_idx"

const subscriptionColumns = `id, user_id, plan_id, start_date, end_date, status, payment_status,
	stripe_price_id, feature_set_version, license_scope, cancelled_at, created_at, updated_at`

// Store implements subscription.Store and subscription.RecoveryStore on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by pool.
// Panics if pool is nil.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{pool: pool}
}

// WithinPairLock runs fn in a transaction holding a transaction-scoped advisory
// lock derived from the pair key, so concurrent reconciliations of the same
// pair queue up instead of racing on the insert.
func (s *Store) WithinPairLock(ctx context.Context, userID uuid.UUID, planID string, fn func(ctx context.Context, tx subscription.PairTx) error) error {
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", subscription.PairKey(userID, planID)); err != nil {
			return err
		}
		return fn(ctx, &pairTx{tx: tx})
	})
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*subscription.UserSubscription, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return sub, err
}

func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]*subscription.UserSubscription, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*subscription.UserSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Cancel flips an active row to cancelled. A row that is already cancelled is
// returned as is.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*subscription.UserSubscription, error) {
	row := s.pool.QueryRow(ctx, `UPDATE user_subscriptions
		SET status = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+subscriptionColumns,
		id, subscription.StatusCancelled, at, subscription.StatusActive)
	sub, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return s.Get(ctx, id)
	}
	return sub, err
}

type pairTx struct {
	tx pgx.Tx
}

func (t *pairTx) FindActive(ctx context.Context, userID uuid.UUID, planID string) (*subscription.UserSubscription, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions
		WHERE user_id = $1 AND plan_id = $2 AND status = $3
		FOR UPDATE`, userID, planID, subscription.StatusActive)
	sub, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return sub, err
}

func (t *pairTx) Insert(ctx context.Context, sub *subscription.UserSubscription) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO user_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sub.ID, sub.UserID, sub.PlanID, sub.StartDate, sub.EndDate, sub.Status, sub.PaymentStatus,
		nullString(sub.StripePriceID), sub.FeatureSetVersion, sub.LicenseScope, sub.CancelledAt,
		sub.CreatedAt, sub.UpdatedAt)
	if pg.IsConstraintViolation(err, activePairIndex) {
		return errors.Join(subscription.ErrDuplicateActive, err)
	}
	return err
}

func (t *pairTx) Update(ctx context.Context, sub *subscription.UserSubscription) error {
	tag, err := t.tx.Exec(ctx, `UPDATE user_subscriptions SET
		start_date = $2, end_date = $3, status = $4, payment_status = $5, stripe_price_id = $6,
		feature_set_version = $7, license_scope = $8, cancelled_at = $9, updated_at = $10
		WHERE id = $1`,
		sub.ID, sub.StartDate, sub.EndDate, sub.Status, sub.PaymentStatus, nullString(sub.StripePriceID),
		sub.FeatureSetVersion, sub.LicenseScope, sub.CancelledAt, sub.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*subscription.UserSubscription, error) {
	var (
		sub     subscription.UserSubscription
		priceID *string
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.StartDate, &sub.EndDate, &sub.Status, &sub.PaymentStatus,
		&priceID, &sub.FeatureSetVersion, &sub.LicenseScope, &sub.CancelledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if priceID != nil {
		sub.StripePriceID = *priceID
	}
	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	return &sub, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
