package subscription

import "context"

// CheckoutProvider is the single read operation this package needs from a
// payment provider. Implementations authenticate with a server-held secret and
// must not retry internally; retry policy belongs to the caller.
type CheckoutProvider interface {
	// GetCheckoutSession fetches a completed checkout by its opaque identifier,
	// including the purchased price and its metadata.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// CheckoutSession is a provider-neutral view of a checkout session.
type CheckoutSession struct {
	ID                string
	PaymentStatus     CheckoutPaymentStatus
	ClientReferenceID string            // user the session was created for
	Metadata          map[string]string // session metadata, carries plan_id
	PriceID           string            // provider price identifier, may be empty
	PriceMetadata     map[string]string // purchased price metadata, may be nil
}

// PlanID returns the plan reference stored in session metadata.
func (s *CheckoutSession) PlanID() string {
	return metadataValue(s.Metadata, MetadataPlanID)
}

// IsPaid reports whether the provider considers the session paid.
func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == CheckoutPaid
}
