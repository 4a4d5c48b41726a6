package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billing/modules/checkout"
	"github.com/dmitrymomot/billing/pkg/ratelimiter"
	"github.com/dmitrymomot/billing/pkg/subscription"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) ReconcileCheckout(ctx context.Context, sessionID string, userID uuid.UUID) subscription.Result {
	return m.Called(ctx, sessionID, userID).Get(0).(subscription.Result)
}

func (m *mockService) Reconcile(ctx context.Context, userID uuid.UUID, p *subscription.VerifiedPurchase) subscription.Result {
	return m.Called(ctx, userID, p).Get(0).(subscription.Result)
}

func (m *mockService) CancelSubscription(ctx context.Context, userID, subID uuid.UUID) (*subscription.UserSubscription, error) {
	args := m.Called(ctx, userID, subID)
	sub, _ := args.Get(0).(*subscription.UserSubscription)
	return sub, args.Error(1)
}

func (m *mockService) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]*subscription.UserSubscription, error) {
	args := m.Called(ctx, userID)
	subs, _ := args.Get(0).([]*subscription.UserSubscription)
	return subs, args.Error(1)
}

func (m *mockService) ActiveEntitlements(ctx context.Context, userID uuid.UUID, at time.Time) ([]*subscription.UserSubscription, error) {
	args := m.Called(ctx, userID, at)
	subs, _ := args.Get(0).([]*subscription.UserSubscription)
	return subs, args.Error(1)
}

func (m *mockService) RetryPending(ctx context.Context, limit int) (subscription.RetryReport, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(subscription.RetryReport), args.Error(1)
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newServer(svc subscription.Service) http.Handler {
	h := checkout.NewHandler(svc, checkout.HeaderUserResolver("X-User-ID"),
		checkout.WithClock(func() time.Time { return fixedNow }),
	)
	return h.Handle()
}

func do(t *testing.T, srv http.Handler, method, target string, userID uuid.UUID) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if userID != uuid.Nil {
		req.Header.Set("X-User-ID", userID.String())
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func activeSub(userID uuid.UUID) *subscription.UserSubscription {
	return &subscription.UserSubscription{
		ID:                uuid.New(),
		UserID:            userID,
		PlanID:            "pro_monthly",
		StartDate:         fixedNow.AddDate(0, 0, -1),
		EndDate:           fixedNow.AddDate(0, 1, -1),
		Status:            subscription.StatusActive,
		PaymentStatus:     subscription.PaymentStatusCompleted,
		FeatureSetVersion: subscription.FeatureSetCurrent,
		LicenseScope:      subscription.LicenseScopeSubscription,
	}
}

func TestHandler_RequiresUser(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	rec, body := do(t, newServer(svc), http.MethodGet, "/complete?session_id=cs_1", uuid.Nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", body["error"])
	svc.AssertNotCalled(t, "ReconcileCheckout", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Complete(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	tests := []struct {
		name      string
		result    subscription.Result
		code      int
		outcome   string
		message   string
		retriable bool
	}{
		{
			name:    "succeeded",
			result:  subscription.Result{Outcome: subscription.OutcomeSucceeded, PlanName: "Pro", Subscription: activeSub(userID), Created: true},
			code:    http.StatusOK,
			outcome: "succeeded",
			message: subscription.MessageSucceeded,
		},
		{
			name:      "payment not completed",
			result:    subscription.Result{Outcome: subscription.OutcomePaymentNotCompleted, Err: subscription.ErrPaymentNotCompleted},
			code:      http.StatusPaymentRequired,
			outcome:   "payment_not_completed",
			message:   subscription.MessagePaymentNotCompleted,
			retriable: true,
		},
		{
			name:      "provider unavailable",
			result:    subscription.Result{Outcome: subscription.OutcomeVerificationFailed, Err: errors.Join(subscription.ErrProviderUnavailable, errors.New("timeout"))},
			code:      http.StatusServiceUnavailable,
			outcome:   "verification_failed",
			message:   subscription.MessageProviderUnavailable,
			retriable: true,
		},
		{
			name:      "plan catalog unavailable",
			result:    subscription.Result{Outcome: subscription.OutcomeVerificationFailed, Err: errors.Join(subscription.ErrFailedToLoadPlans, errors.New("connection refused"))},
			code:      http.StatusServiceUnavailable,
			outcome:   "verification_failed",
			message:   subscription.MessageProviderUnavailable,
			retriable: true,
		},
		{
			name:    "ownership mismatch hides the cause",
			result:  subscription.Result{Outcome: subscription.OutcomeVerificationFailed, Err: subscription.ErrOwnershipMismatch},
			code:    http.StatusUnprocessableEntity,
			outcome: "verification_failed",
			message: subscription.MessageRestartCheckout,
		},
		{
			name:    "persistence failed",
			result:  subscription.Result{Outcome: subscription.OutcomePersistenceFailed, PlanName: "Pro", Err: subscription.ErrPersistenceFailed},
			code:    http.StatusInternalServerError,
			outcome: "persistence_failed",
			message: subscription.MessagePersistenceFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockService{}
			svc.On("ReconcileCheckout", mock.Anything, "cs_1", userID).Return(tt.result)

			rec, body := do(t, newServer(svc), http.MethodGet, "/complete?session_id=cs_1", userID)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.outcome, body["outcome"])
			assert.Equal(t, tt.message, body["message"])
			assert.Equal(t, tt.retriable, body["retriable"])
			assert.NotContains(t, rec.Body.String(), "ownership")
			svc.AssertExpectations(t)
		})
	}

	t.Run("subscription is rendered on success", func(t *testing.T) {
		t.Parallel()

		sub := activeSub(userID)
		svc := &mockService{}
		svc.On("ReconcileCheckout", mock.Anything, "cs_2", userID).
			Return(subscription.Result{Outcome: subscription.OutcomeSucceeded, PlanName: "Pro", Subscription: sub})

		_, body := do(t, newServer(svc), http.MethodGet, "/complete?session_id=cs_2", userID)

		view, ok := body["subscription"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, sub.ID.String(), view["id"])
		assert.Equal(t, "subscription", view["license_scope"])
		assert.Equal(t, true, view["has_access"])
		assert.Equal(t, "Pro", body["plan_name"])
	})
}

func TestHandler_ListAndEntitlements(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	expired := activeSub(userID)
	expired.EndDate = fixedNow.Add(-time.Hour)
	current := activeSub(userID)

	svc := &mockService{}
	svc.On("ListSubscriptions", mock.Anything, userID).Return([]*subscription.UserSubscription{current, expired}, nil)
	svc.On("ActiveEntitlements", mock.Anything, userID, fixedNow).Return([]*subscription.UserSubscription{current}, nil)
	srv := newServer(svc)

	rec, body := do(t, srv, http.MethodGet, "/subscriptions", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	subs := body["subscriptions"].([]any)
	require.Len(t, subs, 2)
	assert.Equal(t, false, subs[1].(map[string]any)["has_access"])

	rec, body = do(t, srv, http.MethodGet, "/entitlements", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["subscriptions"], 1)

	svc.AssertExpectations(t)
}

func TestHandler_ListFailure(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &mockService{}
	svc.On("ListSubscriptions", mock.Anything, userID).Return(nil, errors.New("db down"))

	rec, body := do(t, newServer(svc), http.MethodGet, "/subscriptions", userID)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
}

func TestHandler_Cancel(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("cancels", func(t *testing.T) {
		t.Parallel()

		sub := activeSub(userID)
		cancelledAt := fixedNow
		sub.Status = subscription.StatusCancelled
		sub.CancelledAt = &cancelledAt

		svc := &mockService{}
		svc.On("CancelSubscription", mock.Anything, userID, sub.ID).Return(sub, nil)

		rec, body := do(t, newServer(svc), http.MethodPost, "/subscriptions/"+sub.ID.String()+"/cancel", userID)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cancelled", body["status"])
		assert.Equal(t, true, body["has_access"])
	})

	t.Run("foreign subscription looks missing", func(t *testing.T) {
		t.Parallel()

		subID := uuid.New()
		svc := &mockService{}
		svc.On("CancelSubscription", mock.Anything, userID, subID).Return(nil, subscription.ErrNotSubscriptionOwner)

		rec, body := do(t, newServer(svc), http.MethodPost, "/subscriptions/"+subID.String()+"/cancel", userID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "subscription not found", body["error"])
	})

	t.Run("invalid id", func(t *testing.T) {
		t.Parallel()

		rec, _ := do(t, newServer(&mockService{}), http.MethodPost, "/subscriptions/nope/cancel", userID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestNewHandler_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { checkout.NewHandler(nil, checkout.HeaderUserResolver("X-User-ID")) })
	assert.Panics(t, func() { checkout.NewHandler(&mockService{}, nil) })
}

func TestHandler_CompleteRateLimited(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(store.Close)
	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	userID := uuid.New()
	svc := &mockService{}
	svc.On("ReconcileCheckout", mock.Anything, "cs_1", userID).
		Return(subscription.Result{Outcome: subscription.OutcomePaymentNotCompleted, Err: subscription.ErrPaymentNotCompleted}).
		Twice()
	svc.On("ListSubscriptions", mock.Anything, userID).Return([]*subscription.UserSubscription{}, nil)

	srv := checkout.NewHandler(svc, checkout.HeaderUserResolver("X-User-ID"),
		checkout.WithRateLimiter(limiter),
	).Handle()

	for range 2 {
		rec, _ := do(t, srv, http.MethodGet, "/complete?session_id=cs_1", userID)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	}

	rec, body := do(t, srv, http.MethodGet, "/complete?session_id=cs_1", userID)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, body["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = do(t, srv, http.MethodGet, "/subscriptions", userID)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.AssertExpectations(t)
}
