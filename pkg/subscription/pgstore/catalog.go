package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/billing/pkg/pg"
	"github.com/dmitrymomot/billing/pkg/subscription"
)

// Catalog implements subscription.PlanCatalog on the plans table.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog returns a Catalog backed by pool.
// Panics if pool is nil.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Catalog{pool: pool}
}

// GetPlan loads a plan regardless of its active flag. A row that fails plan
// validation is reported as ErrInvalidPlanConfiguration.
func (c *Catalog) GetPlan(ctx context.Context, planID string) (*subscription.Plan, error) {
	var (
		plan     subscription.Plan
		price    string
		duration string
		features map[string]bool
	)
	err := c.pool.QueryRow(ctx, `SELECT id, name, price::text, duration_months::text, features, feature_set_version, is_active
		FROM plans WHERE id = $1`, planID).
		Scan(&plan.ID, &plan.Name, &price, &duration, &features, &plan.FeatureSetVersion, &plan.IsActive)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrPlanNotFound
		}
		return nil, err
	}

	if plan.Price, err = decimal.NewFromString(price); err != nil {
		return nil, errors.Join(subscription.ErrInvalidPlanConfiguration, fmt.Errorf("plan %s price: %w", planID, err))
	}
	if plan.DurationMonths, err = decimal.NewFromString(duration); err != nil {
		return nil, errors.Join(subscription.ErrInvalidPlanConfiguration, fmt.Errorf("plan %s duration: %w", planID, err))
	}
	plan.Features = make(map[subscription.Feature]bool, len(features))
	for name, on := range features {
		plan.Features[subscription.Feature(name)] = on
	}

	if err := subscription.ValidatePlan(plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// UpsertPlan validates and stores a plan, replacing any row with the same ID.
func (c *Catalog) UpsertPlan(ctx context.Context, plan subscription.Plan) error {
	if err := subscription.ValidatePlan(plan); err != nil {
		return err
	}
	features := make(map[string]bool, len(plan.Features))
	for f, on := range plan.Features {
		features[string(f)] = on
	}

	_, err := c.pool.Exec(ctx, `INSERT INTO plans (id, name, price, duration_months, features, feature_set_version, is_active)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			duration_months = EXCLUDED.duration_months,
			features = EXCLUDED.features,
			feature_set_version = EXCLUDED.feature_set_version,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		plan.ID, plan.Name, plan.Price.String(), plan.DurationMonths.String(), features, plan.FeatureSetVersion, plan.IsActive)
	return err
}
