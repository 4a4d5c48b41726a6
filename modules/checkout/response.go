package checkout

import (
	"time"

	"github.com/dmitrymomot/billing/pkg/subscription"
)

type errorResponse struct {
	Error string `json:"error"`
}

type completeResponse struct {
	Outcome      string            `json:"outcome"`
	Message      string            `json:"message"`
	Retriable    bool              `json:"retriable"`
	PlanName     string            `json:"plan_name,omitempty"`
	Subscription *subscriptionView `json:"subscription,omitempty"`
}

type listResponse struct {
	Subscriptions []subscriptionView `json:"subscriptions"`
}

type subscriptionView struct {
	ID                string     `json:"id"`
	PlanID            string     `json:"plan_id"`
	Status            string     `json:"status"`
	LicenseScope      string     `json:"license_scope"`
	FeatureSetVersion string     `json:"feature_set_version"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           time.Time  `json:"end_date"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	HasAccess         bool       `json:"has_access"`
}

func newSubscriptionView(s *subscription.UserSubscription, now time.Time) subscriptionView {
	return subscriptionView{
		ID:                s.ID.String(),
		PlanID:            s.PlanID,
		Status:            string(s.Status),
		LicenseScope:      string(s.LicenseScope),
		FeatureSetVersion: s.FeatureSetVersion,
		StartDate:         s.StartDate,
		EndDate:           s.EndDate,
		CancelledAt:       s.CancelledAt,
		HasAccess:         s.HasAccessAt(now),
	}
}

func newSubscriptionViews(subs []*subscription.UserSubscription, now time.Time) []subscriptionView {
	out := make([]subscriptionView, 0, len(subs))
	for _, s := range subs {
		out = append(out, newSubscriptionView(s, now))
	}
	return out
}
