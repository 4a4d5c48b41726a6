package subscription

// Feature is a named plan flag.
type Feature string

const (
	// FeatureLifetimeAccess marks plans that grant an irrevocable license
	// for the plan's pinned feature set.
	FeatureLifetimeAccess Feature = "lifetime_access"
)

// LicenseScope tells whether a grant is time-boxed or irrevocable.
type LicenseScope string

const (
	LicenseScopeSubscription LicenseScope = "subscription"
	LicenseScopeLifetime     LicenseScope = "lifetime"
)

// Valid reports whether the scope is one of the known values.
func (s LicenseScope) Valid() bool {
	return s == LicenseScopeSubscription || s == LicenseScopeLifetime
}

// FeatureSetCurrent is the version tag used when nothing pins a purchase
// to a specific feature snapshot.
const FeatureSetCurrent = "current"

// SubscriptionStatus represents the lifecycle state of a persisted subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// PaymentStatus records whether the payment backing a subscription was captured.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// CheckoutPaymentStatus is the provider-reported payment state of a checkout session.
// Values other than the constants below are passed through untouched.
type CheckoutPaymentStatus string

const (
	CheckoutPaid              CheckoutPaymentStatus = "paid"
	CheckoutUnpaid            CheckoutPaymentStatus = "unpaid"
	CheckoutNoPaymentRequired CheckoutPaymentStatus = "no_payment_required"
)

// Metadata keys read from checkout sessions and prices.
const (
	MetadataPlanID            = "plan_id"
	MetadataFeatureSetVersion = "feature_set_version"
	MetadataLicenseScope      = "license_scope"
)
