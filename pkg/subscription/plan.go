package subscription

import (
	"errors"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"
)

// Plan is a read-only catalog entry.
// Inactive plans cannot be bought anymore, but grants issued for them stay valid
// and in-flight checkouts for them are still honored.
type Plan struct {
	ID                string
	Name              string
	Price             decimal.Decimal
	DurationMonths    decimal.Decimal // 0 = one-time, (0,1) = 24-hour pass, >= 1 = calendar months
	Features          map[Feature]bool
	FeatureSetVersion string // feature snapshot the plan locks lifetime purchases to
	IsActive          bool
}

// HasFeature reports whether the named flag is set on the plan.
func (p Plan) HasFeature(f Feature) bool {
	return p.Features[f]
}

// IsLifetime reports whether the plan grants lifetime access.
func (p Plan) IsLifetime() bool {
	return p.HasFeature(FeatureLifetimeAccess)
}

// IsOneTime reports whether the plan has no ongoing access window.
func (p Plan) IsOneTime() bool {
	return p.DurationMonths.IsZero()
}

// IsDayPass reports whether the plan is a 24-hour pass.
func (p Plan) IsDayPass() bool {
	return p.DurationMonths.IsPositive() && p.DurationMonths.LessThan(decimal.NewFromInt(1))
}

// Clone returns a copy that shares no mutable state with p.
func (p Plan) Clone() Plan {
	p.Features = maps.Clone(p.Features)
	return p
}

// ValidatePlan checks the invariants every resolver relies on,
// so that resolution itself never has to fail.
func ValidatePlan(p Plan) error {
	if p.ID == "" {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("plan ID is empty"))
	}
	if p.DurationMonths.IsNegative() {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("plan %s has negative duration: %s", p.ID, p.DurationMonths))
	}
	if p.DurationMonths.GreaterThanOrEqual(decimal.NewFromInt(1)) && !p.DurationMonths.IsInteger() {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("plan %s has fractional duration above one month: %s", p.ID, p.DurationMonths))
	}
	if p.Price.IsNegative() {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("plan %s has negative price: %s", p.ID, p.Price))
	}
	return nil
}

// validatePlans ensures plan configurations are internally consistent.
func validatePlans(plans map[string]Plan) error {
	for planID, plan := range plans {
		if plan.ID != planID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", planID, plan.ID))
		}
		if err := ValidatePlan(plan); err != nil {
			return err
		}
	}
	return nil
}
