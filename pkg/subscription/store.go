package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists user subscriptions.
type Store interface {
	// WithinPairLock runs fn with exclusive access to the (userID, planID) pair.
	// All reads and writes made through tx commit together or not at all.
	// Implementations must also reject a second active row for the pair
	// structurally, returning ErrDuplicateActive from Insert.
	WithinPairLock(ctx context.Context, userID uuid.UUID, planID string, fn func(ctx context.Context, tx PairTx) error) error

	// Get returns ErrSubscriptionNotFound if no row has the given ID.
	Get(ctx context.Context, id uuid.UUID) (*UserSubscription, error)

	// ListByUser returns all rows of a user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserSubscription, error)

	// Cancel moves an active row to StatusCancelled. The row is never deleted.
	// Returns ErrSubscriptionNotFound if the row does not exist.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*UserSubscription, error)
}

// PairTx is the transactional view handed to WithinPairLock callbacks.
type PairTx interface {
	// FindActive returns ErrSubscriptionNotFound when the pair has no active row.
	FindActive(ctx context.Context, userID uuid.UUID, planID string) (*UserSubscription, error)
	Insert(ctx context.Context, sub *UserSubscription) error
	Update(ctx context.Context, sub *UserSubscription) error
}

// PendingReconciliation is the record kept when a paid purchase could not be
// persisted. It holds everything needed to apply the entitlement later.
type PendingReconciliation struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	PlanID        string
	SessionID     string
	PriceID       string
	PriceMetadata map[string]string
	LastError     string
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
}

// RecoveryStore keeps pending reconciliations for out-of-band retries.
type RecoveryStore interface {
	SavePending(ctx context.Context, p *PendingReconciliation) error
	// ListPending returns unresolved records, oldest first.
	ListPending(ctx context.Context, limit int) ([]*PendingReconciliation, error)
	MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkAttempt(ctx context.Context, id uuid.UUID, lastErr string, at time.Time) error
}

// PairLocker serializes reconciliations of one (user, plan) pair across
// processes. It is optional; Store.WithinPairLock is authoritative.
type PairLocker interface {
	// Lock blocks until the key is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

// PairKey is the lock key of a (user, plan) pair.
func PairKey(userID uuid.UUID, planID string) string {
	return "subscription:pair:" + userID.String() + ":" + planID
}
