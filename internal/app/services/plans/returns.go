package plans

import (
	"github.com/shopspring/decimal"

	"github.com/ameer851/axix-finance-sub002/internal/app/domain/plan"
)

// RoundMoney rounds a monetary value to 2 decimal places, half to even.
// Intermediate computation stays unrounded so repeated projections do not
// compound rounding error.
func RoundMoney(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return out
}

// DailyReturn is the profit credited per elapsed day for a principal.
func DailyReturn(p plan.Plan, principal float64) float64 {
	return RoundMoney(principal * p.DailyProfitPercent / 100)
}

// TotalReturn is the full-term payout for a principal.
func TotalReturn(p plan.Plan, principal float64) float64 {
	return RoundMoney(principal * p.TotalReturnPercent / 100)
}

// ProjectedBalance forecasts base + principal + accrued daily returns after
// daysElapsed. Accrual stops at the plan duration; projections beyond it
// clamp rather than extrapolate.
func ProjectedBalance(p plan.Plan, base, principal float64, daysElapsed int) float64 {
	days := daysElapsed
	if days < 0 {
		days = 0
	}
	if days > p.DurationDays {
		days = p.DurationDays
	}
	accrued := principal * p.DailyProfitPercent / 100 * float64(days)
	return RoundMoney(base + principal + accrued)
}

// Project validates the amount against the plan and computes the full
// deterministic projection for daysElapsed.
func (c *Catalog) Project(planID string, amount, base float64, daysElapsed int) (plan.Projection, error) {
	p, err := c.Find(planID)
	if err != nil {
		return plan.Projection{}, err
	}
	if err := c.ValidateAmount(p, amount); err != nil {
		return plan.Projection{}, err
	}

	return plan.Projection{
		PlanID:           p.ID,
		Principal:        amount,
		DailyReturn:      DailyReturn(p, amount),
		TotalReturn:      TotalReturn(p, amount),
		DaysElapsed:      daysElapsed,
		ProjectedBalance: ProjectedBalance(p, base, amount, daysElapsed),
	}, nil
}
