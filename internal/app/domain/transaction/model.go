package transaction

import "time"

// Kind distinguishes the two money movements the platform supports.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Status is a transaction lifecycle state. Deposits and withdrawals have
// separate transition graphs; see CanTransition.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Transaction records a single deposit or withdrawal and its lifecycle.
// Status and timestamps mutate only through defined transitions.
type Transaction struct {
	ID               string               `json:"id"`
	UserID           string               `json:"user_id"`
	ReferenceID      string               `json:"reference_id"`
	Kind             Kind                 `json:"kind"`
	Amount           float64              `json:"amount"`
	Currency         string               `json:"currency"`
	Method           string               `json:"method"`
	PlanID           string               `json:"plan_id,omitempty"`
	Fee              float64              `json:"fee"`
	NetAmount        float64              `json:"net_amount"`
	Status           Status               `json:"status"`
	RejectionReason  string               `json:"rejection_reason,omitempty"`
	DailyReturn      float64              `json:"daily_return"`
	TotalReturn      float64              `json:"total_return"`
	AccruedDays      int                  `json:"accrued_days"`
	LastAccruedAt    time.Time            `json:"last_accrued_at,omitempty"`
	StatusTimestamps map[string]time.Time `json:"status_timestamps,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}
