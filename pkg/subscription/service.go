package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/logger"
)

// Service converts confirmed checkouts into durable entitlements.
type Service interface {
	// ReconcileCheckout verifies the session and reconciles it for userID.
	ReconcileCheckout(ctx context.Context, sessionID string, userID uuid.UUID) Result
	// Reconcile persists an already verified purchase. It is safe to call
	// repeatedly with the same purchase: the active row is updated in place.
	Reconcile(ctx context.Context, userID uuid.UUID, purchase *VerifiedPurchase) Result

	// CancelSubscription marks the user's subscription cancelled. Access
	// continues until its end date.
	CancelSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (*UserSubscription, error)
	ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]*UserSubscription, error)
	// ActiveEntitlements returns the subscriptions granting access at the given time.
	ActiveEntitlements(ctx context.Context, userID uuid.UUID, at time.Time) ([]*UserSubscription, error)

	// RetryPending re-applies recorded purchases that failed to persist.
	RetryPending(ctx context.Context, limit int) (RetryReport, error)
}

// SupportNotifier is told about purchases that need manual attention.
type SupportNotifier interface {
	NotifyPendingReconciliation(ctx context.Context, p *PendingReconciliation) error
}

// RetryReport summarizes a RetryPending run.
type RetryReport struct {
	Attempted int
	Resolved  int
	Failed    int
}

// ErrRecoveryNotConfigured is returned by RetryPending without a RecoveryStore.
var ErrRecoveryNotConfigured = errors.New("subscription recovery store is not configured")

type service struct {
	catalog  PlanCatalog
	verifier *Verifier
	store    Store
	recovery RecoveryStore
	notifier SupportNotifier
	locker   PairLocker
	log      *slog.Logger
	now      func() time.Time
}

// NewService creates a Service with the given dependencies.
// Panics if a required dependency is nil to fail fast during initialization.
func NewService(catalog PlanCatalog, verifier *Verifier, store Store, opts ...ServiceOption) Service {
	if catalog == nil {
		panic("subscription: PlanCatalog is required")
	}
	if verifier == nil {
		panic("subscription: Verifier is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}

	s := &service{
		catalog:  catalog,
		verifier: verifier,
		store:    store,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("subscription"))
	return s
}

func (s *service) ReconcileCheckout(ctx context.Context, sessionID string, userID uuid.UUID) Result {
	purchase, err := s.verifier.Verify(ctx, sessionID, userID)
	if err != nil {
		return s.verificationFailed(ctx, sessionID, userID, err)
	}
	return s.Reconcile(ctx, userID, purchase)
}

func (s *service) Reconcile(ctx context.Context, userID uuid.UUID, purchase *VerifiedPurchase) Result {
	if purchase == nil {
		return Result{Outcome: OutcomeVerificationFailed, Err: ErrUnexpectedProviderResponse}
	}
	if purchase.UserID != userID {
		s.log.WarnContext(ctx, "verified purchase does not belong to requesting user",
			logger.Security(),
			logger.UserID(userID),
			logger.SessionID(purchase.SessionID),
		)
		return Result{Outcome: OutcomeVerificationFailed, Err: ErrOwnershipMismatch}
	}

	now := s.now()
	grant := NewGrant(purchase.Plan, purchase.PriceMetadata, now)

	sub, created, err := s.persist(ctx, userID, purchase, grant, now, nil)
	if err != nil {
		return s.persistenceFailed(ctx, userID, purchase, err)
	}

	s.log.InfoContext(ctx, "checkout reconciled",
		logger.Outcome(string(OutcomeSucceeded)),
		logger.UserID(userID),
		logger.PlanID(purchase.Plan.ID),
		logger.SessionID(purchase.SessionID),
		logger.SubscriptionID(sub.ID),
		slog.Bool("created", created),
		slog.String("license_scope", string(sub.LicenseScope)),
		slog.String("feature_set_version", sub.FeatureSetVersion),
		slog.Time("end_date", sub.EndDate),
	)

	return Result{
		Outcome:      OutcomeSucceeded,
		PlanName:     purchase.Plan.Name,
		Subscription: sub,
		Created:      created,
	}
}

// persist runs the create-or-update transition under the pair lock. When keep
// reports true for the active row, the row is returned unchanged.
func (s *service) persist(ctx context.Context, userID uuid.UUID, purchase *VerifiedPurchase, grant Grant, now time.Time, keep func(*UserSubscription) bool) (*UserSubscription, bool, error) {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, PairKey(userID, purchase.Plan.ID))
		if err != nil {
			return nil, false, fmt.Errorf("failed to acquire pair lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.log.WarnContext(ctx, "failed to release pair lock", logger.Error(err), logger.UserID(userID))
			}
		}()
	}

	sub, created, err := s.apply(ctx, userID, purchase, grant, now, keep)
	if errors.Is(err, ErrDuplicateActive) {
		// Another writer inserted the active row first; the second pass updates it.
		sub, created, err = s.apply(ctx, userID, purchase, grant, now, keep)
	}
	return sub, created, err
}

func (s *service) apply(ctx context.Context, userID uuid.UUID, purchase *VerifiedPurchase, grant Grant, now time.Time, keep func(*UserSubscription) bool) (*UserSubscription, bool, error) {
	var (
		result  *UserSubscription
		created bool
	)
	err := s.store.WithinPairLock(ctx, userID, purchase.Plan.ID, func(ctx context.Context, tx PairTx) error {
		existing, err := tx.FindActive(ctx, userID, purchase.Plan.ID)
		switch {
		case err == nil:
			if keep != nil && keep(existing) {
				result = existing
				return nil
			}
			existing.applyGrant(grant, purchase.PriceID, now)
			if err := tx.Update(ctx, existing); err != nil {
				return err
			}
			result = existing
			return nil

		case errors.Is(err, ErrSubscriptionNotFound):
			sub := &UserSubscription{
				ID:        uuid.New(),
				UserID:    userID,
				PlanID:    purchase.Plan.ID,
				Status:    StatusActive,
				CreatedAt: now,
			}
			sub.applyGrant(grant, purchase.PriceID, now)
			if err := tx.Insert(ctx, sub); err != nil {
				return err
			}
			result, created = sub, true
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (s *service) verificationFailed(ctx context.Context, sessionID string, userID uuid.UUID, err error) Result {
	outcome := OutcomeVerificationFailed
	level := slog.LevelInfo
	switch {
	case errors.Is(err, ErrPaymentNotCompleted):
		outcome = OutcomePaymentNotCompleted
	case isTemporary(err):
		level = slog.LevelWarn
	}

	s.log.Log(ctx, level, "checkout not reconciled",
		logger.Outcome(string(outcome)),
		logger.UserID(userID),
		logger.SessionID(sessionID),
		logger.Error(err),
	)
	return Result{Outcome: outcome, Err: err}
}

// persistenceFailed records everything needed to apply the entitlement by hand
// or by RetryPending. The payment itself is never touched.
func (s *service) persistenceFailed(ctx context.Context, userID uuid.UUID, purchase *VerifiedPurchase, cause error) Result {
	res := Result{
		Outcome:  OutcomePersistenceFailed,
		PlanName: purchase.Plan.Name,
		Err:      errors.Join(ErrPersistenceFailed, cause),
	}

	attrs := []any{
		logger.Outcome(string(OutcomePersistenceFailed)),
		logger.UserID(userID),
		logger.PlanID(purchase.Plan.ID),
		logger.SessionID(purchase.SessionID),
		slog.String("price_id", purchase.PriceID),
		logger.Error(cause),
	}

	if s.recovery == nil {
		s.log.ErrorContext(ctx, "paid checkout could not be persisted", attrs...)
		return res
	}

	now := s.now()
	pending := &PendingReconciliation{
		ID:            uuid.New(),
		UserID:        userID,
		PlanID:        purchase.Plan.ID,
		SessionID:     purchase.SessionID,
		PriceID:       purchase.PriceID,
		PriceMetadata: maps.Clone(purchase.PriceMetadata),
		LastError:     cause.Error(),
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.recovery.SavePending(context.WithoutCancel(ctx), pending); err != nil {
		attrs = append(attrs, slog.Any("recovery_error", err))
		s.log.ErrorContext(ctx, "paid checkout could not be persisted or recorded", attrs...)
		return res
	}
	res.PendingID = pending.ID

	attrs = append(attrs, slog.String("pending_id", pending.ID.String()))
	s.log.ErrorContext(ctx, "paid checkout could not be persisted", attrs...)

	if s.notifier != nil {
		if err := s.notifier.NotifyPendingReconciliation(context.WithoutCancel(ctx), pending); err != nil {
			s.log.WarnContext(ctx, "failed to notify support", logger.Error(err), slog.String("pending_id", pending.ID.String()))
		}
	}
	return res
}

func (s *service) CancelSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (*UserSubscription, error) {
	sub, err := s.store.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrNotSubscriptionOwner
	}
	if sub.IsCancelled() {
		return sub, nil
	}

	cancelled, err := s.store.Cancel(ctx, subscriptionID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.log.InfoContext(ctx, "subscription cancelled",
		logger.UserID(userID),
		logger.PlanID(cancelled.PlanID),
		logger.SubscriptionID(cancelled.ID),
		slog.Time("access_until", cancelled.EndDate),
	)
	return cancelled, nil
}

func (s *service) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]*UserSubscription, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *service) ActiveEntitlements(ctx context.Context, userID uuid.UUID, at time.Time) ([]*UserSubscription, error) {
	subs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]*UserSubscription, 0, len(subs))
	for _, sub := range subs {
		if sub.HasAccessAt(at) {
			active = append(active, sub)
		}
	}
	return active, nil
}

// RetryPending applies recorded purchases again. The grant starts at the time
// the purchase was first recorded, not at the time of the retry.
func (s *service) RetryPending(ctx context.Context, limit int) (RetryReport, error) {
	var report RetryReport
	if s.recovery == nil {
		return report, ErrRecoveryNotConfigured
	}

	pending, err := s.recovery.ListPending(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("failed to list pending reconciliations: %w", err)
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Attempted++

		if err := s.retryOne(ctx, p); err != nil {
			report.Failed++
			if markErr := s.recovery.MarkAttempt(ctx, p.ID, err.Error(), s.now()); markErr != nil {
				s.log.ErrorContext(ctx, "failed to record retry attempt", logger.Error(markErr), slog.String("pending_id", p.ID.String()))
			}
			s.log.WarnContext(ctx, "pending reconciliation retry failed",
				slog.String("pending_id", p.ID.String()),
				logger.UserID(p.UserID),
				logger.PlanID(p.PlanID),
				logger.RetryCount(p.Attempts),
				logger.Error(err),
			)
			continue
		}

		report.Resolved++
		if err := s.recovery.MarkResolved(ctx, p.ID, s.now()); err != nil {
			// The entitlement is applied; a rerun only refreshes the same active row.
			s.log.ErrorContext(ctx, "failed to mark pending reconciliation resolved", logger.Error(err), slog.String("pending_id", p.ID.String()))
		}
	}
	return report, nil
}

func (s *service) retryOne(ctx context.Context, p *PendingReconciliation) error {
	plan, err := s.catalog.GetPlan(ctx, p.PlanID)
	if err != nil {
		return err
	}
	purchase := &VerifiedPurchase{
		UserID:        p.UserID,
		SessionID:     p.SessionID,
		Plan:          *plan,
		PriceID:       p.PriceID,
		PriceMetadata: p.PriceMetadata,
	}
	grant := NewGrant(*plan, p.PriceMetadata, p.CreatedAt)

	superseded := false
	sub, _, err := s.persist(ctx, p.UserID, purchase, grant, s.now(), func(existing *UserSubscription) bool {
		superseded = supersedes(existing, grant, p.CreatedAt)
		return superseded
	})
	if err != nil {
		return err
	}

	msg := "pending reconciliation applied"
	if superseded {
		msg = "pending reconciliation superseded by a later grant"
	}
	s.log.InfoContext(ctx, msg,
		slog.String("pending_id", p.ID.String()),
		logger.UserID(p.UserID),
		logger.PlanID(p.PlanID),
		logger.SubscriptionID(sub.ID),
		slog.Time("end_date", sub.EndDate),
	)
	return nil
}

// supersedes reports whether the active row was written after the pending
// purchase was recorded, or already grants access at least as long as g.
// Re-applying the pending grant over such a row would shorten paid access.
func supersedes(active *UserSubscription, g Grant, recordedAt time.Time) bool {
	return active.UpdatedAt.After(recordedAt) || !active.EndDate.Before(g.EndDate)
}
