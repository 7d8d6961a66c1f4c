// Package approvals wraps single and bulk admin operations over the
// transaction state machine with partial-failure reporting.
package approvals

import (
	"context"
	"errors"

	"github.com/ameer851/axix-finance-sub002/internal/app/auth"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/plans"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/transactions"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage"
	"github.com/ameer851/axix-finance-sub002/pkg/logger"
)

// Failure reports why one item of a bulk operation did not apply.
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// BulkResult is the per-item outcome of a bulk operation. The batch is not
// transactional as a group: each item's transition is independently atomic
// and there is no rollback across items.
type BulkResult struct {
	Succeeded []transaction.Transaction `json:"succeeded"`
	Failed    []Failure                 `json:"failed"`
}

// Coordinator fans admin actions out to the state machine.
type Coordinator struct {
	machine *transactions.Service
	log     *logger.Logger
}

// New constructs a coordinator over the state machine service.
func New(machine *transactions.Service, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewDefault("approvals")
	}
	return &Coordinator{machine: machine, log: log}
}

// ApplySingle applies one action to one transaction, surfacing the state
// machine's error unchanged so callers can message precisely.
func (c *Coordinator) ApplySingle(ctx context.Context, txID string, action transaction.Action, reason string, actor auth.Actor) (transaction.Transaction, error) {
	return c.machine.Transition(ctx, txID, action, reason, actor)
}

// ApplyBulk applies the action to each id independently. One failure never
// aborts the batch; every id lands in exactly one of Succeeded or Failed.
func (c *Coordinator) ApplyBulk(ctx context.Context, txIDs []string, action transaction.Action, reason string, actor auth.Actor) BulkResult {
	result := BulkResult{
		Succeeded: make([]transaction.Transaction, 0, len(txIDs)),
		Failed:    make([]Failure, 0),
	}

	for _, id := range txIDs {
		tx, err := c.machine.Transition(ctx, id, action, reason, actor)
		if err != nil {
			result.Failed = append(result.Failed, Failure{
				ID:     id,
				Reason: ClassifyError(err),
				Err:    err,
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, tx)
	}

	c.log.WithField("action", string(action)).
		WithField("succeeded", len(result.Succeeded)).
		WithField("failed", len(result.Failed)).
		Info("bulk action applied")
	return result
}

// ClassifyError maps an engine error to a stable reason code so bulk callers
// can tell "already processed by someone else" apart from "invalid request".
func ClassifyError(err error) string {
	var rangeErr *plans.AmountRangeError
	switch {
	case errors.Is(err, storage.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, transactions.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, plans.ErrPlanNotFound):
		return "not_found"
	case errors.Is(err, auth.ErrForbidden):
		return "forbidden"
	case errors.Is(err, storage.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.As(err, &rangeErr):
		return "validation"
	default:
		return "error"
	}
}
