package pgstore_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billing/db/migrations"
	"github.com/dmitrymomot/billing/pkg/pg"
	"github.com/dmitrymomot/billing/pkg/subscription"
	"github.com/dmitrymomot/billing/pkg/subscription/pgstore"
)

type discardLog struct{}

func (discardLog) InfoContext(context.Context, string, ...any)  {}
func (discardLog) ErrorContext(context.Context, string, ...any) {}

var (
	migrateOnce sync.Once
	migrateErr  error
)

// testPool connects to PG_TEST_CONN_URL and applies the embedded migrations once.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("PG_TEST_CONN_URL")
	if url == "" {
		t.Skip("PG_TEST_CONN_URL is not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     10,
		MaxIdleConns:     1,
		RetryAttempts:    1,
		MigrationsTable:  "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrateOnce.Do(func() {
		migrateErr = pg.MigrateFS(ctx, pool, migrations.FS, ".", cfg, discardLog{})
	})
	require.NoError(t, migrateErr)
	return pool
}

func newActive(userID uuid.UUID, planID string, now time.Time) *subscription.UserSubscription {
	return &subscription.UserSubscription{
		ID:                uuid.New(),
		UserID:            userID,
		PlanID:            planID,
		StartDate:         now,
		EndDate:           now.AddDate(0, 1, 0),
		Status:            subscription.StatusActive,
		PaymentStatus:     subscription.PaymentStatusCompleted,
		FeatureSetVersion: subscription.FeatureSetCurrent,
		LicenseScope:      subscription.LicenseScopeSubscription,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestStore_PairTransaction(t *testing.T) {
	t.Parallel()

	pool := testPool(t)
	store := pgstore.New(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("insert then find and update", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		sub := newActive(userID, "pro_monthly", now)

		err := store.WithinPairLock(ctx, userID, "pro_monthly", func(ctx context.Context, tx subscription.PairTx) error {
			return tx.Insert(ctx, sub)
		})
		require.NoError(t, err)

		err = store.WithinPairLock(ctx, userID, "pro_monthly", func(ctx context.Context, tx subscription.PairTx) error {
			found, err := tx.FindActive(ctx, userID, "pro_monthly")
			if err != nil {
				return err
			}
			found.StripePriceID = "price_123"
			found.EndDate = now.AddDate(0, 2, 0)
			return tx.Update(ctx, found)
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "price_123", got.StripePriceID)
		assert.True(t, got.EndDate.Equal(now.AddDate(0, 2, 0)))
	})

	t.Run("second active insert is rejected", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		require.NoError(t, store.WithinPairLock(ctx, userID, "pro_monthly", func(ctx context.Context, tx subscription.PairTx) error {
			return tx.Insert(ctx, newActive(userID, "pro_monthly", now))
		}))

		err := store.WithinPairLock(ctx, userID, "pro_monthly", func(ctx context.Context, tx subscription.PairTx) error {
			return tx.Insert(ctx, newActive(userID, "pro_monthly", now))
		})
		assert.ErrorIs(t, err, subscription.ErrDuplicateActive)
	})

	t.Run("callback error rolls back", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		sub := newActive(userID, "pro_monthly", now)
		boom := assert.AnError

		err := store.WithinPairLock(ctx, userID, "pro_monthly", func(ctx context.Context, tx subscription.PairTx) error {
			if err := tx.Insert(ctx, sub); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = store.Get(ctx, sub.ID)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("concurrent find-or-insert leaves one active row", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = store.WithinPairLock(ctx, userID, "pro_monthly", func(ctx context.Context, tx subscription.PairTx) error {
					if _, err := tx.FindActive(ctx, userID, "pro_monthly"); err == nil {
						return nil
					}
					return tx.Insert(ctx, newActive(userID, "pro_monthly", now))
				})
			}()
		}
		wg.Wait()

		subs, err := store.ListByUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})
}

func TestStore_Cancel(t *testing.T) {
	t.Parallel()

	pool := testPool(t)
	store := pgstore.New(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	userID := uuid.New()
	sub := newActive(userID, "lifetime", now)
	require.NoError(t, store.WithinPairLock(ctx, userID, "lifetime", func(ctx context.Context, tx subscription.PairTx) error {
		return tx.Insert(ctx, sub)
	}))

	cancelled, err := store.Cancel(ctx, sub.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	again, err := store.Cancel(ctx, sub.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, again.CancelledAt.Equal(*cancelled.CancelledAt))

	_, err = store.Cancel(ctx, uuid.New(), now)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
}

func TestStore_Recovery(t *testing.T) {
	t.Parallel()

	pool := testPool(t)
	store := pgstore.New(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := &subscription.PendingReconciliation{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		PlanID:        "pro_monthly",
		SessionID:     "cs_test_recovery",
		PriceID:       "price_1",
		PriceMetadata: map[string]string{"license_scope": "lifetime"},
		LastError:     "connection reset",
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.SavePending(ctx, p))
	require.NoError(t, store.MarkAttempt(ctx, p.ID, "still down", now.Add(time.Minute)))

	pending, err := store.ListPending(ctx, 0)
	require.NoError(t, err)
	var found *subscription.PendingReconciliation
	for _, rec := range pending {
		if rec.ID == p.ID {
			found = rec
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 2, found.Attempts)
	assert.Equal(t, "still down", found.LastError)
	assert.Equal(t, "lifetime", found.PriceMetadata["license_scope"])

	require.NoError(t, store.MarkResolved(ctx, p.ID, now.Add(2*time.Minute)))
	pending, err = store.ListPending(ctx, 0)
	require.NoError(t, err)
	for _, rec := range pending {
		assert.NotEqual(t, p.ID, rec.ID)
	}

	assert.ErrorIs(t, store.MarkResolved(ctx, uuid.New(), now), subscription.ErrPendingNotFound)
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	pool := testPool(t)
	catalog := pgstore.NewCatalog(pool)
	ctx := context.Background()

	planID := "test_" + uuid.NewString()
	plan := subscription.Plan{
		ID:                planID,
		Name:              "Founder",
		Price:             decimal.RequireFromString("249.00"),
		DurationMonths:    decimal.Zero,
		Features:          map[subscription.Feature]bool{subscription.FeatureLifetimeAccess: true},
		FeatureSetVersion: "v2",
		IsActive:          false,
	}
	require.NoError(t, catalog.UpsertPlan(ctx, plan))

	got, err := catalog.GetPlan(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, "Founder", got.Name)
	assert.True(t, got.Price.Equal(plan.Price))
	assert.True(t, got.IsLifetime())
	assert.False(t, got.IsActive)
	assert.Equal(t, "v2", got.FeatureSetVersion)

	_, err = catalog.GetPlan(ctx, "missing_"+uuid.NewString())
	assert.ErrorIs(t, err, subscription.ErrPlanNotFound)

	bad := plan
	bad.DurationMonths = decimal.RequireFromString("1.5")
	assert.ErrorIs(t, catalog.UpsertPlan(ctx, bad), subscription.ErrInvalidPlanConfiguration)
}
