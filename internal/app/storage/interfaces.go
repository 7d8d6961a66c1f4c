package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ameer851/axix-finance-sub002/internal/app/domain/ledger"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
)

var (
	// ErrNotFound is wrapped by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConcurrencyConflict is returned by CommitIfStatus when the
	// transaction's current status no longer matches the expected pre-state.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrInsufficientFunds is returned when a balance mutation would drive
	// available or pending funds negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// TransactionStore persists transaction records.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	GetTransaction(ctx context.Context, id string) (transaction.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]transaction.Transaction, error)
	ListByStatus(ctx context.Context, kind transaction.Kind, status transaction.Status) ([]transaction.Transaction, error)
}

// LedgerStore owns user balances. The engine never caches a balance across
// calls; every mutation goes through one of these operations, which re-read
// current state before committing.
type LedgerStore interface {
	GetBalance(ctx context.Context, userID string) (ledger.Balance, error)

	// AdjustBalance applies available/pending deltas to a user's balance,
	// creating the balance row on first use. It fails with
	// ErrInsufficientFunds if either component would go negative.
	AdjustBalance(ctx context.Context, userID string, availableDelta, pendingDelta float64) (ledger.Balance, error)

	// CommitIfStatus atomically re-reads the transaction's status, aborts
	// with ErrConcurrencyConflict unless it equals expected, and otherwise
	// applies the status change and its balance deltas together.
	CommitIfStatus(ctx context.Context, txID string, expected transaction.Status, change ledger.StatusChange) (transaction.Transaction, error)

	// CommitAccrual credits one daily return and records it on the
	// transaction as a single atomic operation, guarded on the expected
	// accrued-day count. A stale or concurrent caller fails with
	// ErrConcurrencyConflict instead of paying the same day twice.
	CommitAccrual(ctx context.Context, txID string, expectedDays int, amount float64, accruedAt time.Time) (transaction.Transaction, error)
}
