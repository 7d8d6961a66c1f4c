package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ameer851/axix-finance-sub002/internal/app/domain/ledger"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	transactions map[string]transaction.Transaction
	byUser       map[string][]string
	balances     map[string]ledger.Balance
}

var _ storage.TransactionStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		transactions: make(map[string]transaction.Transaction),
		byUser:       make(map[string][]string),
		balances:     make(map[string]ledger.Balance),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// TransactionStore implementation ---------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	} else if _, exists := s.transactions[tx.ID]; exists {
		return transaction.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	tx.StatusTimestamps = cloneTimes(tx.StatusTimestamps)

	s.transactions[tx.ID] = tx
	s.byUser[tx.UserID] = append(s.byUser[tx.UserID], tx.ID)
	return cloneTransaction(tx), nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.transactions[tx.ID]
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, storage.ErrNotFound)
	}

	tx.CreatedAt = original.CreatedAt
	tx.UpdatedAt = time.Now().UTC()
	tx.StatusTimestamps = cloneTimes(tx.StatusTimestamps)

	s.transactions[tx.ID] = tx
	return cloneTransaction(tx), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	result := make([]transaction.Transaction, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneTransaction(s.transactions[id]))
	}
	return result, nil
}

func (s *Store) ListByStatus(_ context.Context, kind transaction.Kind, status transaction.Status) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]transaction.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.Kind == kind && tx.Status == status {
			result = append(result, cloneTransaction(tx))
		}
	}
	// Oldest first, matching the postgres store's ordering.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// LedgerStore implementation ---------------------------------------------------

func (s *Store) GetBalance(_ context.Context, userID string) (ledger.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bal, ok := s.balances[userID]
	if !ok {
		return ledger.Balance{UserID: userID}, nil
	}
	return bal, nil
}

func (s *Store) AdjustBalance(_ context.Context, userID string, availableDelta, pendingDelta float64) (ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.adjustBalanceLocked(userID, availableDelta, pendingDelta)
}

func (s *Store) adjustBalanceLocked(userID string, availableDelta, pendingDelta float64) (ledger.Balance, error) {
	bal, ok := s.balances[userID]
	if !ok {
		bal = ledger.Balance{UserID: userID}
	}

	newAvailable := bal.Available + availableDelta
	newPending := bal.Pending + pendingDelta
	if newAvailable < 0 || newPending < 0 {
		return ledger.Balance{}, fmt.Errorf("user %s: %w", userID, storage.ErrInsufficientFunds)
	}
	// Reserved funds can never exceed spendable funds.
	if newPending > newAvailable {
		return ledger.Balance{}, fmt.Errorf("user %s: %w", userID, storage.ErrInsufficientFunds)
	}

	bal.Available = newAvailable
	bal.Pending = newPending
	bal.UpdatedAt = time.Now().UTC()

	s.balances[userID] = bal
	return bal, nil
}

// CommitIfStatus holds the store lock for the whole read-check-write, which
// gives the exactly-once guarantee for balance-affecting transitions.
func (s *Store) CommitIfStatus(_ context.Context, txID string, expected transaction.Status, change ledger.StatusChange) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
	}
	if tx.Status != expected {
		return transaction.Transaction{}, fmt.Errorf("transaction %s is %s, expected %s: %w", txID, tx.Status, expected, storage.ErrConcurrencyConflict)
	}

	if change.AvailableDelta != 0 || change.PendingDelta != 0 {
		if _, err := s.adjustBalanceLocked(tx.UserID, change.AvailableDelta, change.PendingDelta); err != nil {
			return transaction.Transaction{}, err
		}
	}

	now := time.Now().UTC()
	tx.Status = change.NewStatus
	tx.UpdatedAt = now
	if tx.StatusTimestamps == nil {
		tx.StatusTimestamps = make(map[string]time.Time)
	}
	tx.StatusTimestamps[string(change.NewStatus)] = now
	if change.RejectionReason != "" {
		tx.RejectionReason = change.RejectionReason
	}
	if change.SetReturns {
		tx.DailyReturn = change.DailyReturn
		tx.TotalReturn = change.TotalReturn
	}

	s.transactions[tx.ID] = tx
	return cloneTransaction(tx), nil
}

// CommitAccrual applies the daily credit and the accrual record under one
// lock. The guard on the accrued-day count plays the same role the status
// guard plays in CommitIfStatus: a caller holding a stale snapshot conflicts
// instead of crediting the same day twice.
func (s *Store) CommitAccrual(_ context.Context, txID string, expectedDays int, amount float64, accruedAt time.Time) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
	}
	if tx.AccruedDays != expectedDays {
		return transaction.Transaction{}, fmt.Errorf("transaction %s accrued %d days, expected %d: %w",
			txID, tx.AccruedDays, expectedDays, storage.ErrConcurrencyConflict)
	}

	if _, err := s.adjustBalanceLocked(tx.UserID, amount, 0); err != nil {
		return transaction.Transaction{}, err
	}

	tx.AccruedDays++
	tx.LastAccruedAt = accruedAt
	tx.UpdatedAt = time.Now().UTC()
	s.transactions[tx.ID] = tx
	return cloneTransaction(tx), nil
}

// Helpers ----------------------------------------------------------------------

func cloneTimes(src map[string]time.Time) map[string]time.Time {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]time.Time, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneTransaction(tx transaction.Transaction) transaction.Transaction {
	tx.StatusTimestamps = cloneTimes(tx.StatusTimestamps)
	return tx
}
