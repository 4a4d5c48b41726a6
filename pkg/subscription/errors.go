package subscription

import "errors"

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	// Checkout verification errors
	ErrMissingSessionID     = errors.New("checkout session ID is required")
	ErrProviderUnavailable  = errors.New("billing provider unavailable")
	ErrOwnershipMismatch    = errors.New("checkout session belongs to a different user")
	ErrMissingPlanReference = errors.New("checkout session has no plan reference")
	ErrPaymentNotCompleted  = errors.New("checkout payment not completed")

	// Persistence errors
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrDuplicateActive      = errors.New("active subscription already exists for user and plan")
	ErrPersistenceFailed    = errors.New("failed to persist subscription")
	ErrNotSubscriptionOwner = errors.New("subscription belongs to a different user")
	ErrPendingNotFound      = errors.New("pending reconciliation not found")

	// Provider-specific errors
	ErrMissingAPIKey              = errors.New("billing provider API key is required")
	ErrInvalidProviderEnvironment = errors.New("invalid billing provider environment")
	ErrUnexpectedProviderResponse = errors.New("unexpected billing provider response")
)
