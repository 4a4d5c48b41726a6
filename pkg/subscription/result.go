package subscription

import (
	"errors"

	"github.com/google/uuid"
)

// Outcome names the result of a reconciliation attempt.
type Outcome string

const (
	OutcomeSucceeded           Outcome = "succeeded"
	OutcomePaymentNotCompleted Outcome = "payment_not_completed"
	OutcomeVerificationFailed  Outcome = "verification_failed"
	OutcomePersistenceFailed   Outcome = "persistence_failed"
)

// User-facing messages. Internal causes such as an ownership mismatch are
// never described to the end user.
const (
	MessageSucceeded           = "Your purchase is complete."
	MessagePaymentNotCompleted = "Payment was not completed. Please try again."
	MessageProviderUnavailable = "We could not confirm your payment right now. Please try again in a few minutes."
	MessageRestartCheckout     = "We could not verify this checkout. Please start the purchase again."
	MessagePersistenceFailed   = "Your payment was captured, but your access has not been applied yet. Please contact support."
)

// Result is the outcome of a reconciliation. Err carries the precise internal
// cause for logs; UserMessage is what may be shown to the user.
type Result struct {
	Outcome      Outcome
	PlanName     string
	Subscription *UserSubscription
	Created      bool      // a new row was inserted rather than an active one updated
	PendingID    uuid.UUID // recovery record saved for a persistence failure
	Err          error
}

func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}

// Retriable reports whether the user may simply try again.
// Persistence failures are not: the payment is already captured and the
// entitlement is retried out of band.
func (r Result) Retriable() bool {
	switch r.Outcome {
	case OutcomePaymentNotCompleted:
		return true
	case OutcomeVerificationFailed:
		return isTemporary(r.Err)
	default:
		return false
	}
}

// UserMessage returns the message to present to the end user.
func (r Result) UserMessage() string {
	switch r.Outcome {
	case OutcomeSucceeded:
		return MessageSucceeded
	case OutcomePaymentNotCompleted:
		return MessagePaymentNotCompleted
	case OutcomePersistenceFailed:
		return MessagePersistenceFailed
	default:
		if isTemporary(r.Err) {
			return MessageProviderUnavailable
		}
		return MessageRestartCheckout
	}
}

// isTemporary reports whether err is an outage on our side or the provider's.
// The session may already be paid, so the user must not be sent to a new checkout.
func isTemporary(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrFailedToLoadPlans)
}
