// Package plans holds the investment plan catalog and the return calculator.
package plans

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ameer851/axix-finance-sub002/internal/app/domain/plan"
)

// ErrPlanNotFound is returned when a plan id is not in the catalog.
var ErrPlanNotFound = errors.New("plan not found")

// AmountRangeError reports an amount outside a plan's tier bounds. Max is
// zero for unbounded plans.
type AmountRangeError struct {
	PlanID string
	Min    float64
	Max    float64
}

func (e *AmountRangeError) Error() string {
	if e.Max <= 0 {
		return fmt.Sprintf("amount out of range for plan %s: minimum %.2f", e.PlanID, e.Min)
	}
	return fmt.Sprintf("amount out of range for plan %s: must be between %.2f and %.2f", e.PlanID, e.Min, e.Max)
}

// Catalog is an immutable, declaration-ordered registry of investment plans.
// It is constructed once at startup and safe for concurrent reads.
type Catalog struct {
	plans []plan.Plan
	byID  map[string]plan.Plan
}

// NewCatalog validates and indexes the provided plans, preserving their
// declaration order for recommendation tie-breaking.
func NewCatalog(list []plan.Plan) (*Catalog, error) {
	if len(list) == 0 {
		return nil, errors.New("at least one plan is required")
	}

	byID := make(map[string]plan.Plan, len(list))
	ordered := make([]plan.Plan, 0, len(list))
	for _, p := range list {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, errors.New("plan id is required")
		}
		if _, exists := byID[p.ID]; exists {
			return nil, fmt.Errorf("duplicate plan id %s", p.ID)
		}
		if p.MinAmount < 0 {
			return nil, fmt.Errorf("plan %s: min_amount cannot be negative", p.ID)
		}
		if !p.Unbounded() && p.MaxAmount < p.MinAmount {
			return nil, fmt.Errorf("plan %s: max_amount below min_amount", p.ID)
		}
		if p.DurationDays <= 0 {
			return nil, fmt.Errorf("plan %s: duration_days must be positive", p.ID)
		}
		if p.DailyProfitPercent < 0 || p.TotalReturnPercent < 0 {
			return nil, fmt.Errorf("plan %s: profit percents cannot be negative", p.ID)
		}
		byID[p.ID] = p
		ordered = append(ordered, p)
	}

	return &Catalog{plans: ordered, byID: byID}, nil
}

// Find returns the plan with the given id.
func (c *Catalog) Find(id string) (plan.Plan, error) {
	p, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return plan.Plan{}, fmt.Errorf("plan %s: %w", id, ErrPlanNotFound)
	}
	return p, nil
}

// ValidateAmount checks amount against the plan's tier bounds.
func (c *Catalog) ValidateAmount(p plan.Plan, amount float64) error {
	if p.Contains(amount) {
		return nil
	}
	return &AmountRangeError{PlanID: p.ID, Min: p.MinAmount, Max: p.MaxAmount}
}

// Recommend returns the plan with the highest total return whose bounds
// contain the amount. Ties keep the earliest declared plan. The second
// return is false when no plan's range contains the amount.
func (c *Catalog) Recommend(amount float64) (plan.Plan, bool) {
	var best plan.Plan
	found := false
	for _, p := range c.plans {
		if !p.Contains(amount) {
			continue
		}
		if !found || p.TotalReturnPercent > best.TotalReturnPercent {
			best = p
			found = true
		}
	}
	return best, found
}

// List returns the plans in declaration order.
func (c *Catalog) List() []plan.Plan {
	return append([]plan.Plan(nil), c.plans...)
}
