// Package subscription turns confirmed payment-provider checkouts into durable,
// idempotent entitlement records.
//
// A checkout-completion request carries an opaque session identifier and the
// authenticated user. The package fetches the session from the provider,
// checks that it belongs to that user and was paid, resolves what the purchase
// grants, and writes exactly one active UserSubscription for the (user, plan)
// pair, creating it or updating it in place.
//
// # Architecture
//
//   - PlanCatalog: read-only plan lookup (in memory, YAML file, or Postgres via pgstore)
//   - ResolveEndDate: pure mapping of a plan's duration onto an access window
//   - ResolveEntitlement: pure derivation of feature-set version and license scope
//   - Verifier: provider fetch plus ownership, plan and payment checks
//   - Service: the create-or-update transition and its outcome
//   - Store / PairTx: persistence with a per-pair lock; MemoryStore for tests and
//     single-process use, pgstore for Postgres
//   - RecoveryStore / SupportNotifier: paid-but-unsaved purchases for out-of-band retry
//   - CheckoutProvider: StripeProvider and PaddleProvider
//
// # Entitlement rules
//
// The purchased price's metadata (feature_set_version, license_scope) wins.
// Otherwise a plan with the lifetime_access flag grants a lifetime license
// pinned to the plan's FeatureSetVersion, and every other plan grants a
// subscription license on the "current" feature set. Lifetime grants end at
// LifetimeEndDate rather than an open end, so end dates always compare.
//
// Durations: 0 months leaves the end date equal to the start; less than one
// month is a 24-hour pass; whole months use calendar arithmetic clamped to the
// end of shorter months.
//
// # Usage
//
//	catalog := subscription.NewInMemCatalog(plans...)
//	provider, _ := subscription.NewStripeProvider(stripeCfg)
//	verifier := subscription.NewVerifier(provider, catalog,
//		subscription.WithVerifierTimeout(10*time.Second),
//		subscription.WithVerifierLogger(log),
//	)
//	svc := subscription.NewService(catalog, verifier, store,
//		subscription.WithLogger(log),
//		subscription.WithRecoveryStore(store),
//	)
//
//	res := svc.ReconcileCheckout(ctx, sessionID, userID)
//	if !res.Succeeded() {
//		// res.UserMessage() is safe to show; res.Err is for logs.
//	}
//
// # Outcomes
//
// OutcomePaymentNotCompleted, provider unavailability and a plan catalog outage
// are retriable by the user. OutcomeVerificationFailed for any other reason means the checkout has
// to be started again. OutcomePersistenceFailed means the payment was captured
// but the entitlement was not saved; a PendingReconciliation is recorded when a
// RecoveryStore is configured and RetryPending applies it later, unless the
// active row has since been written by a newer purchase.
//
// # Concurrency
//
// Reconciliation is synchronous. Concurrent calls for the same pair are
// serialized by Store.WithinPairLock, optionally fronted by a cross-process
// PairLocker. A unique active-row constraint in the store is the final guard:
// a losing insert is retried once and takes the update path.
package subscription
