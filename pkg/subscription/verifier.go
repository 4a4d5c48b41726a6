package subscription

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/logger"
)

// DefaultProviderTimeout bounds a single checkout session fetch.
const DefaultProviderTimeout = 10 * time.Second

// VerifiedPurchase is a paid checkout session bound to its owner.
type VerifiedPurchase struct {
	UserID        uuid.UUID
	SessionID     string
	Plan          Plan
	PriceID       string            // provider price ID kept for audit
	PriceMetadata map[string]string // input for ResolveEntitlement
}

// Verifier fetches checkout sessions from the provider and validates them.
type Verifier struct {
	provider CheckoutProvider
	catalog  PlanCatalog
	timeout  time.Duration
	log      *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierTimeout bounds each provider call. Non-positive values are ignored.
func WithVerifierTimeout(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithVerifierLogger sets the logger used for security events.
func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if l != nil {
			v.log = l
		}
	}
}

// NewVerifier creates a Verifier. Panics if provider or catalog is nil.
func NewVerifier(provider CheckoutProvider, catalog PlanCatalog, opts ...VerifierOption) *Verifier {
	if provider == nil {
		panic("subscription: CheckoutProvider is required")
	}
	if catalog == nil {
		panic("subscription: PlanCatalog is required")
	}
	v := &Verifier{
		provider: provider,
		catalog:  catalog,
		timeout:  DefaultProviderTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify fetches the session and checks, in order: ownership, plan reference,
// plan existence, payment status. The plan is looked up regardless of
// Plan.IsActive so deactivated plans still honor in-flight checkouts.
//
// Errors: ErrMissingSessionID, ErrProviderUnavailable and ErrFailedToLoadPlans
// (both retriable by the caller), ErrOwnershipMismatch, ErrMissingPlanReference,
// ErrPlanNotFound, ErrPaymentNotCompleted.
func (v *Verifier) Verify(ctx context.Context, sessionID string, expectedUser uuid.UUID) (*VerifiedPurchase, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	session, err := v.provider.GetCheckoutSession(fetchCtx, sessionID)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	if session == nil {
		return nil, errors.Join(ErrProviderUnavailable, ErrUnexpectedProviderResponse)
	}

	// The session must have been created for the requesting user. Any UUID
	// spelling is accepted; anything that does not parse is a mismatch.
	if owner, err := uuid.Parse(session.ClientReferenceID); err != nil || owner != expectedUser {
		v.log.WarnContext(ctx, "checkout session ownership mismatch",
			logger.Security(),
			logger.SessionID(sessionID),
			logger.UserID(expectedUser),
			slog.String("session_user", session.ClientReferenceID),
		)
		return nil, ErrOwnershipMismatch
	}

	planID := session.PlanID()
	if planID == "" {
		return nil, ErrMissingPlanReference
	}

	plan, err := v.catalog.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if !session.IsPaid() {
		return nil, ErrPaymentNotCompleted
	}

	return &VerifiedPurchase{
		UserID:        expectedUser,
		SessionID:     sessionID,
		Plan:          plan.Clone(),
		PriceID:       session.PriceID,
		PriceMetadata: maps.Clone(session.PriceMetadata),
	}, nil
}
