// Package pgstore persists subscriptions, pending reconciliations and the plan
// catalog in PostgreSQL. The schema lives in db/migrations.
//
// Store.WithinPairLock takes pg_advisory_xact_lock on the pair key and reads
// the active row FOR UPDATE. The partial unique index
// user_subscriptions_active_pair_idx rejects a second active row; that
// violation surfaces as subscription.ErrDuplicateActive.
package pgstore
