package subscription

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store and RecoveryStore.
// A single mutex serializes pair transactions; writes are staged and only
// applied when the callback returns nil.
type MemoryStore struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]UserSubscription
	pending map[uuid.UUID]PendingReconciliation
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:    make(map[uuid.UUID]UserSubscription),
		pending: make(map[uuid.UUID]PendingReconciliation),
	}
}

func (s *MemoryStore) WithinPairLock(ctx context.Context, userID uuid.UUID, planID string, fn func(ctx context.Context, tx PairTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, staged: make(map[uuid.UUID]UserSubscription)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	maps.Copy(s.subs, tx.staged)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*UserSubscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, &sub)
		}
	}
	slices.SortFunc(out, func(a, b *UserSubscription) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Cancel(_ context.Context, id uuid.UUID, at time.Time) (*UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	if sub.IsActive() {
		sub.Status = StatusCancelled
		sub.CancelledAt = &at
		sub.UpdatedAt = at
		s.subs[id] = sub
	}
	return &sub, nil
}

// ActiveCount returns the number of active rows for the pair.
func (s *MemoryStore) ActiveCount(userID uuid.UUID, planID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.PlanID == planID && sub.IsActive() {
			n++
		}
	}
	return n
}

func (s *MemoryStore) SavePending(_ context.Context, p *PendingReconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *p
	rec.PriceMetadata = maps.Clone(p.PriceMetadata)
	s.pending[p.ID] = rec
	return nil
}

func (s *MemoryStore) ListPending(_ context.Context, limit int) ([]*PendingReconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*PendingReconciliation
	for _, p := range s.pending {
		if p.ResolvedAt == nil {
			rec := p
			rec.PriceMetadata = maps.Clone(p.PriceMetadata)
			out = append(out, &rec)
		}
	}
	slices.SortFunc(out, func(a, b *PendingReconciliation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkResolved(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return ErrPendingNotFound
	}
	p.ResolvedAt = &at
	p.UpdatedAt = at
	s.pending[id] = p
	return nil
}

func (s *MemoryStore) MarkAttempt(_ context.Context, id uuid.UUID, lastErr string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return ErrPendingNotFound
	}
	p.Attempts++
	p.LastError = lastErr
	p.UpdatedAt = at
	s.pending[id] = p
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	staged map[uuid.UUID]UserSubscription
}

func (tx *memoryTx) lookup(id uuid.UUID) (UserSubscription, bool) {
	if sub, ok := tx.staged[id]; ok {
		return sub, true
	}
	sub, ok := tx.store.subs[id]
	return sub, ok
}

func (tx *memoryTx) FindActive(_ context.Context, userID uuid.UUID, planID string) (*UserSubscription, error) {
	for id := range tx.store.subs {
		if sub, _ := tx.lookup(id); sub.UserID == userID && sub.PlanID == planID && sub.IsActive() {
			return &sub, nil
		}
	}
	for _, sub := range tx.staged {
		if sub.UserID == userID && sub.PlanID == planID && sub.IsActive() {
			return &sub, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (tx *memoryTx) Insert(ctx context.Context, sub *UserSubscription) error {
	if sub.IsActive() {
		if _, err := tx.FindActive(ctx, sub.UserID, sub.PlanID); err == nil {
			return ErrDuplicateActive
		}
	}
	tx.staged[sub.ID] = *sub
	return nil
}

func (tx *memoryTx) Update(_ context.Context, sub *UserSubscription) error {
	if _, ok := tx.lookup(sub.ID); !ok {
		return ErrSubscriptionNotFound
	}
	tx.staged[sub.ID] = *sub
	return nil
}
