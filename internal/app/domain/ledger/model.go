package ledger

import (
	"time"

	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
)

// Balance is a user's funds as owned by the ledger. Available is spendable;
// Pending is reserved by in-flight withdrawals.
type Balance struct {
	UserID    string    `json:"user_id"`
	Available float64   `json:"available"`
	Pending   float64   `json:"pending"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total is the sum of available and pending funds.
func (b Balance) Total() float64 {
	return b.Available + b.Pending
}

// StatusChange describes the combined status write and balance delta a
// compare-and-commit applies as one atomic operation.
type StatusChange struct {
	NewStatus       transaction.Status
	AvailableDelta  float64
	PendingDelta    float64
	RejectionReason string
	DailyReturn     float64
	TotalReturn     float64
	SetReturns      bool
}
