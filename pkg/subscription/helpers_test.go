package subscription_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/billing/pkg/subscription"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*subscription.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutSession), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetPlan(ctx context.Context, planID string) (*subscription.Plan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Plan), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyPendingReconciliation(ctx context.Context, p *subscription.PendingReconciliation) error {
	return m.Called(ctx, p).Error(0)
}

// failingStore wraps a MemoryStore and fails pair transactions while failing is set.
type failingStore struct {
	*subscription.MemoryStore

	mu      sync.Mutex
	failing bool
	err     error
}

func (s *failingStore) setFailing(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = on
}

func (s *failingStore) WithinPairLock(ctx context.Context, userID uuid.UUID, planID string, fn func(ctx context.Context, tx subscription.PairTx) error) error {
	s.mu.Lock()
	failing, err := s.failing, s.err
	s.mu.Unlock()

	if failing {
		return err
	}
	return s.MemoryStore.WithinPairLock(ctx, userID, planID, fn)
}

// racingStore makes the first insert lose to a row another writer commits
// concurrently.
type racingStore struct {
	*subscription.MemoryStore

	once   sync.Once
	winner *subscription.UserSubscription
}

func (s *racingStore) WithinPairLock(ctx context.Context, userID uuid.UUID, planID string, fn func(ctx context.Context, tx subscription.PairTx) error) error {
	raced := false
	err := s.MemoryStore.WithinPairLock(ctx, userID, planID, func(ctx context.Context, tx subscription.PairTx) error {
		return fn(ctx, &racingTx{PairTx: tx, race: func() bool {
			s.once.Do(func() { raced = true })
			return raced
		}})
	})
	if !raced {
		return err
	}
	if commitErr := s.MemoryStore.WithinPairLock(ctx, userID, planID, func(ctx context.Context, tx subscription.PairTx) error {
		return tx.Insert(ctx, s.winner)
	}); commitErr != nil {
		return commitErr
	}
	return err
}

type racingTx struct {
	subscription.PairTx
	race func() bool
}

func (tx *racingTx) Insert(ctx context.Context, sub *subscription.UserSubscription) error {
	if tx.race() {
		return subscription.ErrDuplicateActive
	}
	return tx.PairTx.Insert(ctx, sub)
}

type recordingLocker struct {
	mu       sync.Mutex
	keys     []string
	released int
	err      error
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

func testPlans() []subscription.Plan {
	return []subscription.Plan{
		{
			ID:             "pro_monthly",
			Name:           "Pro",
			Price:          decimal.RequireFromString("19.00"),
			DurationMonths: decimal.NewFromInt(1),
			IsActive:       true,
		},
		{
			ID:                "founder_lifetime",
			Name:              "Founder",
			Price:             decimal.RequireFromString("299.00"),
			DurationMonths:    decimal.Zero,
			Features:          map[subscription.Feature]bool{subscription.FeatureLifetimeAccess: true},
			FeatureSetVersion: "v2",
			IsActive:          true,
		},
		{
			ID:             "day_pass",
			Name:           "Day Pass",
			Price:          decimal.RequireFromString("3.00"),
			DurationMonths: decimal.RequireFromString("0.5"),
			IsActive:       true,
		},
		{
			ID:             "legacy_yearly",
			Name:           "Legacy",
			Price:          decimal.RequireFromString("99.00"),
			DurationMonths: decimal.NewFromInt(12),
			IsActive:       false,
		},
	}
}

func paidSession(id string, userID uuid.UUID, planID string) *subscription.CheckoutSession {
	return &subscription.CheckoutSession{
		ID:                id,
		PaymentStatus:     subscription.CheckoutPaid,
		ClientReferenceID: userID.String(),
		Metadata:          map[string]string{subscription.MetadataPlanID: planID},
		PriceID:           "price_" + planID,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
