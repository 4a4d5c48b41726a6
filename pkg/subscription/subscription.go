package subscription

import (
	"time"

	"github.com/google/uuid"
)

// UserSubscription is the persisted entitlement of a user for a plan.
// At most one row per (UserID, PlanID) has StatusActive at any time.
type UserSubscription struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	PlanID            string
	StartDate         time.Time
	EndDate           time.Time
	Status            SubscriptionStatus
	PaymentStatus     PaymentStatus
	StripePriceID     string // provider price ID, empty when unknown
	FeatureSetVersion string
	LicenseScope      LicenseScope
	CancelledAt       *time.Time // set when the user cancels
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s *UserSubscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *UserSubscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

func (s *UserSubscription) IsLifetime() bool {
	return s.LicenseScope == LicenseScopeLifetime
}

// HasAccessAt reports whether the user may use the entitlement at t.
// Cancellation does not revoke access; the paid window runs until EndDate.
func (s *UserSubscription) HasAccessAt(t time.Time) bool {
	if s.PaymentStatus != PaymentStatusCompleted {
		return false
	}
	return t.Before(s.EndDate)
}

// applyGrant copies the reconciled fields onto s.
func (s *UserSubscription) applyGrant(g Grant, priceID string, now time.Time) {
	s.StartDate = g.StartDate
	s.EndDate = g.EndDate
	s.PaymentStatus = PaymentStatusCompleted
	s.StripePriceID = priceID
	s.FeatureSetVersion = g.FeatureSetVersion
	s.LicenseScope = g.LicenseScope
	s.UpdatedAt = now
}
