package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PlanCatalog looks up plans by identifier.
// Lookup is by ID only; it is never gated on Plan.IsActive.
type PlanCatalog interface {
	// GetPlan returns ErrPlanNotFound when no plan has the given ID.
	GetPlan(ctx context.Context, planID string) (*Plan, error)
}

type inMemCatalog struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemCatalog returns an in-memory catalog holding deep copies of the given plans.
// Panics if no plans are provided or a plan fails validation, so that a
// misconfigured catalog stops startup instead of failing reconciliations later.
func NewInMemCatalog(plans ...Plan) PlanCatalog {
	if len(plans) < 1 {
		panic("subscription: at least one plan is required")
	}
	plansCopy := make(map[string]Plan, len(plans))
	for _, plan := range plans {
		plansCopy[plan.ID] = plan.Clone()
	}
	if err := validatePlans(plansCopy); err != nil {
		panic(err)
	}
	return &inMemCatalog{plans: plansCopy}
}

// GetPlan returns a copy so callers cannot modify the catalog's state.
func (c *inMemCatalog) GetPlan(_ context.Context, planID string) (*Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan, ok := c.plans[planID]
	if !ok {
		return nil, ErrPlanNotFound
	}
	p := plan.Clone()
	return &p, nil
}

// yamlPlan is the on-disk shape of a catalog entry.
type yamlPlan struct {
	ID                string          `yaml:"id"`
	Name              string          `yaml:"name"`
	Price             string          `yaml:"price"`
	DurationMonths    string          `yaml:"duration_months"`
	Features          map[string]bool `yaml:"features"`
	FeatureSetVersion string          `yaml:"feature_set_version"`
	Active            *bool           `yaml:"active"`
}

type yamlCatalog struct {
	Plans []yamlPlan `yaml:"plans"`
}

// LoadCatalogYAML reads a plan catalog document:
//
//	plans:
//	  - id: pro_monthly
//	    name: Pro
//	    price: "19.00"
//	    duration_months: "1"
//	    features: {lifetime_access: false}
//	    feature_set_version: v3
//
// Plans default to active when the field is omitted.
func LoadCatalogYAML(r io.Reader) (PlanCatalog, error) {
	var doc yamlCatalog
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if len(doc.Plans) == 0 {
		return nil, errors.Join(ErrFailedToLoadPlans, errors.New("catalog contains no plans"))
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, yp := range doc.Plans {
		p, err := yp.toPlan()
		if err != nil {
			return nil, errors.Join(ErrFailedToLoadPlans, err)
		}
		if _, dup := plans[p.ID]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("duplicate plan ID %s", p.ID))
		}
		plans[p.ID] = p
	}
	if err := validatePlans(plans); err != nil {
		return nil, err
	}
	return &inMemCatalog{plans: plans}, nil
}

func (yp yamlPlan) toPlan() (Plan, error) {
	price, err := parseDecimal(yp.Price)
	if err != nil {
		return Plan{}, fmt.Errorf("plan %s: invalid price %q: %w", yp.ID, yp.Price, err)
	}
	duration, err := parseDecimal(yp.DurationMonths)
	if err != nil {
		return Plan{}, fmt.Errorf("plan %s: invalid duration %q: %w", yp.ID, yp.DurationMonths, err)
	}

	features := make(map[Feature]bool, len(yp.Features))
	for name, on := range yp.Features {
		features[Feature(name)] = on
	}

	active := true
	if yp.Active != nil {
		active = *yp.Active
	}

	return Plan{
		ID:                yp.ID,
		Name:              yp.Name,
		Price:             price,
		DurationMonths:    duration,
		Features:          features,
		FeatureSetVersion: yp.FeatureSetVersion,
		IsActive:          active,
	}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
