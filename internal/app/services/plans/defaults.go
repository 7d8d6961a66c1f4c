package plans

import "github.com/ameer851/axix-finance-sub002/internal/app/domain/plan"

// DefaultPlans returns the built-in plan tiers used when no plan file is
// configured. Order matters: recommendation ties keep the earliest plan.
func DefaultPlans() []plan.Plan {
	return []plan.Plan{
		{
			ID:                 "starter",
			Name:               "Starter Plan",
			MinAmount:          50,
			MaxAmount:          999,
			DailyProfitPercent: 2,
			DurationDays:       3,
			TotalReturnPercent: 106,
		},
		{
			ID:                 "premium",
			Name:               "Premium Plan",
			MinAmount:          1000,
			MaxAmount:          4999,
			DailyProfitPercent: 3.5,
			DurationDays:       7,
			TotalReturnPercent: 124.5,
		},
		{
			ID:                 "delux",
			Name:               "Delux Plan",
			MinAmount:          5000,
			MaxAmount:          19999,
			DailyProfitPercent: 5,
			DurationDays:       10,
			TotalReturnPercent: 150,
		},
		{
			ID:                 "luxury",
			Name:               "Luxury Plan",
			MinAmount:          20000,
			MaxAmount:          0, // unbounded
			DailyProfitPercent: 7.5,
			DurationDays:       30,
			TotalReturnPercent: 325,
		},
	}
}
