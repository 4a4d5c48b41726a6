package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billing/pkg/subscription"
)

func (s *Store) SavePending(ctx context.Context, p *subscription.PendingReconciliation) error {
	md := p.PriceMetadata
	if md == nil {
		md = map[string]string{}
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO pending_reconciliations
		(id, user_id, plan_id, session_id, price_id, price_metadata, last_error, attempts, created_at, updated_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.UserID, p.PlanID, p.SessionID, p.PriceID, md, p.LastError, p.Attempts,
		p.CreatedAt, p.UpdatedAt, p.ResolvedAt)
	return err
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]*subscription.PendingReconciliation, error) {
	query := `SELECT id, user_id, plan_id, session_id, price_id, price_metadata, last_error, attempts,
		created_at, updated_at, resolved_at
		FROM pending_reconciliations
		WHERE resolved_at IS NULL
		ORDER BY created_at`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*subscription.PendingReconciliation, error) {
		var p subscription.PendingReconciliation
		err := row.Scan(&p.ID, &p.UserID, &p.PlanID, &p.SessionID, &p.PriceID, &p.PriceMetadata,
			&p.LastError, &p.Attempts, &p.CreatedAt, &p.UpdatedAt, &p.ResolvedAt)
		p.CreatedAt = p.CreatedAt.UTC()
		return &p, err
	})
}

func (s *Store) MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE pending_reconciliations
		SET resolved_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrPendingNotFound
	}
	return nil
}

func (s *Store) MarkAttempt(ctx context.Context, id uuid.UUID, lastErr string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE pending_reconciliations
		SET attempts = attempts + 1, last_error = $2, updated_at = $3 WHERE id = $1`, id, lastErr, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrPendingNotFound
	}
	return nil
}
