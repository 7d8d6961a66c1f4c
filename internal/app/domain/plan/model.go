package plan

// Plan describes a tiered investment product. Plans are immutable and loaded
// once at process start; the catalog never mutates them after construction.
type Plan struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	MinAmount          float64 `json:"min_amount"`
	MaxAmount          float64 `json:"max_amount"` // zero means unbounded
	DailyProfitPercent float64 `json:"daily_profit_percent"`
	DurationDays       int     `json:"duration_days"`
	TotalReturnPercent float64 `json:"total_return_percent"`
}

// Unbounded reports whether the plan has no upper amount limit.
func (p Plan) Unbounded() bool {
	return p.MaxAmount <= 0
}

// Contains reports whether amount falls within the plan's tier bounds.
func (p Plan) Contains(amount float64) bool {
	if amount < p.MinAmount {
		return false
	}
	if !p.Unbounded() && amount > p.MaxAmount {
		return false
	}
	return true
}

// Projection is the deterministic return forecast for a principal invested
// into a plan.
type Projection struct {
	PlanID           string  `json:"plan_id"`
	Principal        float64 `json:"principal"`
	DailyReturn      float64 `json:"daily_return"`
	TotalReturn      float64 `json:"total_return"`
	DaysElapsed      int     `json:"days_elapsed"`
	ProjectedBalance float64 `json:"projected_balance"`
}
