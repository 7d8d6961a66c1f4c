// Package transactions implements the transaction lifecycle state machine:
// creation-time validation, kind-specific status transitions and the
// exactly-once balance mutation contract.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ameer851/axix-finance-sub002/internal/app/auth"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/ledger"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
	"github.com/ameer851/axix-finance-sub002/internal/app/metrics"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/plans"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage"
	"github.com/ameer851/axix-finance-sub002/pkg/logger"
)

// ErrInvalidTransition is returned when a requested transition is not an
// edge in the transaction kind's status graph, including any transition out
// of a terminal state.
var ErrInvalidTransition = errors.New("invalid transition")

// DefaultRejectionReason substitutes for a blank reason on fail/reject.
const DefaultRejectionReason = "Rejected by administrator"

// MethodBalance funds a deposit from the user's available balance; the debit
// happens at creation and confirmation only marks status.
const MethodBalance = "balance"

// Service drives the transaction state machine over the ledger.
type Service struct {
	catalog    *plans.Catalog
	store      storage.TransactionStore
	ledger     storage.LedgerStore
	authz      auth.Authorizer
	feePercent float64
	log        *logger.Logger
}

// Option customises service construction.
type Option func(*Service)

// WithFeePercent overrides the withdrawal fee percentage.
func WithFeePercent(percent float64) Option {
	return func(s *Service) {
		if percent >= 0 {
			s.feePercent = percent
		}
	}
}

// WithAuthorizer overrides the default role authorizer.
func WithAuthorizer(authz auth.Authorizer) Option {
	return func(s *Service) {
		if authz != nil {
			s.authz = authz
		}
	}
}

// New constructs the state machine service.
func New(catalog *plans.Catalog, store storage.TransactionStore, ldg storage.LedgerStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("transactions")
	}
	s := &Service{
		catalog:    catalog,
		store:      store,
		ledger:     ldg,
		authz:      auth.NewRoleAuthorizer(nil),
		feePercent: 3,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is a submission request for a new deposit or withdrawal.
type CreateInput struct {
	UserID   string
	Kind     transaction.Kind
	Amount   float64
	Currency string
	Method   string
	PlanID   string
}

// Create validates the submission and persists the transaction in its
// initial pending state. Balance-funded deposits debit available funds here;
// withdrawals reserve the requested amount. No state exists if validation
// fails.
func (s *Service) Create(ctx context.Context, input CreateInput) (transaction.Transaction, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.Method = strings.ToLower(strings.TrimSpace(input.Method))
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	input.PlanID = strings.TrimSpace(input.PlanID)

	if input.UserID == "" {
		return transaction.Transaction{}, fmt.Errorf("user_id is required")
	}
	if input.Amount <= 0 {
		return transaction.Transaction{}, fmt.Errorf("amount must be positive")
	}
	if input.Method == "" {
		return transaction.Transaction{}, fmt.Errorf("method is required")
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}

	tx := transaction.Transaction{
		UserID:   input.UserID,
		Kind:     input.Kind,
		Amount:   input.Amount,
		Currency: input.Currency,
		Method:   input.Method,
		Status:   transaction.StatusPending,
	}

	switch input.Kind {
	case transaction.KindDeposit:
		if input.PlanID != "" {
			p, err := s.catalog.Find(input.PlanID)
			if err != nil {
				return transaction.Transaction{}, err
			}
			if err := s.catalog.ValidateAmount(p, input.Amount); err != nil {
				return transaction.Transaction{}, err
			}
			tx.PlanID = p.ID
		}
	case transaction.KindWithdrawal:
		if input.PlanID != "" {
			return transaction.Transaction{}, fmt.Errorf("plan_id only applies to deposits")
		}
		tx.Fee = plans.RoundMoney(input.Amount * s.feePercent / 100)
		tx.NetAmount = plans.RoundMoney(input.Amount - tx.Fee)
	default:
		return transaction.Transaction{}, fmt.Errorf("unknown transaction kind %q", input.Kind)
	}

	tx.ReferenceID = newReferenceID()
	tx.StatusTimestamps = map[string]time.Time{
		string(transaction.StatusPending): time.Now().UTC(),
	}

	// Creation-time balance effects happen before the record exists, so a
	// failed debit leaves no state behind.
	switch {
	case input.Kind == transaction.KindDeposit && input.Method == MethodBalance:
		if _, err := s.ledger.AdjustBalance(ctx, input.UserID, -input.Amount, 0); err != nil {
			return transaction.Transaction{}, err
		}
	case input.Kind == transaction.KindWithdrawal:
		if _, err := s.ledger.AdjustBalance(ctx, input.UserID, 0, input.Amount); err != nil {
			return transaction.Transaction{}, err
		}
	}

	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		// Roll the creation-time hold back so funds are not stranded.
		switch {
		case input.Kind == transaction.KindDeposit && input.Method == MethodBalance:
			if _, rbErr := s.ledger.AdjustBalance(ctx, input.UserID, input.Amount, 0); rbErr != nil {
				s.log.WithError(rbErr).Warnf("release deposit hold for user %s failed", input.UserID)
			}
		case input.Kind == transaction.KindWithdrawal:
			if _, rbErr := s.ledger.AdjustBalance(ctx, input.UserID, 0, -input.Amount); rbErr != nil {
				s.log.WithError(rbErr).Warnf("release withdrawal reservation for user %s failed", input.UserID)
			}
		}
		return transaction.Transaction{}, err
	}

	s.log.WithField("transaction_id", created.ID).
		WithField("user_id", created.UserID).
		WithField("kind", string(created.Kind)).
		Info("transaction created")
	metrics.RecordTransactionCreated(string(created.Kind))
	return created, nil
}

// Transition applies an admin action to a transaction. The balance delta and
// status write commit atomically against the expected pre-state, which makes
// concurrent duplicate actions surface as a concurrency conflict rather than
// a double mutation.
func (s *Service) Transition(ctx context.Context, txID string, action transaction.Action, reason string, actor auth.Actor) (transaction.Transaction, error) {
	if err := s.authz.Authorize(ctx, actor, auth.RoleAdmin); err != nil {
		return transaction.Transaction{}, err
	}

	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return transaction.Transaction{}, err
	}

	target, ok := transaction.ActionTarget(tx.Kind, action)
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("action %s does not apply to %s: %w", action, tx.Kind, ErrInvalidTransition)
	}
	source, _ := transaction.Source(tx.Kind, action)
	if tx.Status != source {
		return transaction.Transaction{}, fmt.Errorf("cannot %s a %s %s: %w", action, tx.Status, tx.Kind, ErrInvalidTransition)
	}

	change, err := s.buildChange(tx, action, target, reason)
	if err != nil {
		return transaction.Transaction{}, err
	}

	committed, err := s.ledger.CommitIfStatus(ctx, tx.ID, source, change)
	if err != nil {
		metrics.RecordTransition(string(tx.Kind), string(action), "error")
		return transaction.Transaction{}, err
	}

	s.log.WithField("transaction_id", committed.ID).
		WithField("action", string(action)).
		WithField("status", string(committed.Status)).
		WithField("actor", actor.ID).
		Info("transaction transitioned")
	metrics.RecordTransition(string(tx.Kind), string(action), "ok")
	return committed, nil
}

func (s *Service) buildChange(tx transaction.Transaction, action transaction.Action, target transaction.Status, reason string) (ledger.StatusChange, error) {
	change := ledger.StatusChange{NewStatus: target}

	switch action {
	case transaction.ActionConfirm:
		if tx.Method != MethodBalance {
			change.AvailableDelta = tx.Amount
		}
		if tx.PlanID != "" {
			p, err := s.catalog.Find(tx.PlanID)
			if err != nil {
				return ledger.StatusChange{}, err
			}
			change.SetReturns = true
			change.DailyReturn = plans.DailyReturn(p, tx.Amount)
			change.TotalReturn = plans.TotalReturn(p, tx.Amount)
		}
	case transaction.ActionFail, transaction.ActionReject:
		if strings.TrimSpace(reason) == "" {
			reason = DefaultRejectionReason
		}
		change.RejectionReason = reason
		if action == transaction.ActionReject {
			change.PendingDelta = -tx.Amount
		}
	case transaction.ActionComplete:
		// Finalize the reservation made at request time. The fee was
		// disclosed then and is not subtracted again.
		change.AvailableDelta = -tx.Amount
		change.PendingDelta = -tx.Amount
	case transaction.ActionApprove, transaction.ActionProcess:
		// Status-only transitions; still compare-and-committed so two
		// admins cannot both win the same edge.
	default:
		return ledger.StatusChange{}, fmt.Errorf("action %s: %w", action, ErrInvalidTransition)
	}

	return change, nil
}

// Get returns a transaction by id.
func (s *Service) Get(ctx context.Context, txID string) (transaction.Transaction, error) {
	return s.store.GetTransaction(ctx, txID)
}

// ListForUser returns a user's transactions.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]transaction.Transaction, error) {
	return s.store.ListTransactions(ctx, userID)
}

// ListPendingByKind returns transactions awaiting admin action.
func (s *Service) ListPendingByKind(ctx context.Context, kind transaction.Kind) ([]transaction.Transaction, error) {
	return s.store.ListByStatus(ctx, kind, transaction.StatusPending)
}

// Balance reads the user's current ledger balance.
func (s *Service) Balance(ctx context.Context, userID string) (ledger.Balance, error) {
	return s.ledger.GetBalance(ctx, userID)
}

func newReferenceID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "TXN-" + raw[:10]
}
