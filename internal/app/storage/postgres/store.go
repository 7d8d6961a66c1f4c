// Package postgres persists transactions and balances in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/ameer851/axix-finance-sub002/internal/app/domain/ledger"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage"
)

// Store implements the storage interfaces on top of database/sql.
type Store struct {
	db *sql.DB
}

var (
	_ storage.TransactionStore = (*Store)(nil)
	_ storage.LedgerStore      = (*Store)(nil)
)

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const transactionColumns = `id, user_id, reference_id, kind, amount, currency, method, plan_id,
	fee, net_amount, status, rejection_reason, daily_return, total_return,
	accrued_days, last_accrued_at, status_timestamps, created_at, updated_at`

func (s *Store) CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	stamps, err := marshalStamps(tx.StatusTimestamps)
	if err != nil {
		return transaction.Transaction{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		tx.ID, tx.UserID, tx.ReferenceID, string(tx.Kind), tx.Amount, tx.Currency, tx.Method, tx.PlanID,
		tx.Fee, tx.NetAmount, string(tx.Status), tx.RejectionReason, tx.DailyReturn, tx.TotalReturn,
		tx.AccruedDays, nullTime(tx.LastAccruedAt), stamps, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	tx.UpdatedAt = time.Now().UTC()
	stamps, err := marshalStamps(tx.StatusTimestamps)
	if err != nil {
		return transaction.Transaction{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET
		status = $2, rejection_reason = $3, daily_return = $4, total_return = $5,
		accrued_days = $6, last_accrued_at = $7, status_timestamps = $8, updated_at = $9
		WHERE id = $1`,
		tx.ID, string(tx.Status), tx.RejectionReason, tx.DailyReturn, tx.TotalReturn,
		tx.AccruedDays, nullTime(tx.LastAccruedAt), stamps, tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := requireRow(res, tx.ID); err != nil {
		return transaction.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (transaction.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
		}
		return transaction.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) ListByStatus(ctx context.Context, kind transaction.Kind, status transaction.Status) ([]transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE kind = $1 AND status = $2 ORDER BY created_at ASC`, string(kind), string(status))
	if err != nil {
		return nil, fmt.Errorf("list transactions by status: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) GetBalance(ctx context.Context, userID string) (ledger.Balance, error) {
	bal := ledger.Balance{UserID: userID}
	err := s.db.QueryRowContext(ctx, `SELECT available, pending, updated_at FROM balances
		WHERE user_id = $1`, userID).Scan(&bal.Available, &bal.Pending, &bal.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return bal, nil
	}
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

func (s *Store) AdjustBalance(ctx context.Context, userID string, availableDelta, pendingDelta float64) (ledger.Balance, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("begin adjust: %w", err)
	}
	defer dbTx.Rollback()

	bal, err := adjustWithin(ctx, dbTx, userID, availableDelta, pendingDelta)
	if err != nil {
		return ledger.Balance{}, err
	}
	if err := dbTx.Commit(); err != nil {
		return ledger.Balance{}, fmt.Errorf("commit adjust: %w", err)
	}
	return bal, nil
}

// CommitIfStatus transitions a transaction and applies its balance deltas in
// a single database transaction. The status guard on the UPDATE makes the
// operation a compare-and-commit: a concurrent writer that got there first
// leaves zero matching rows and the caller observes ErrConcurrencyConflict.
func (s *Store) CommitIfStatus(ctx context.Context, txID string, expected transaction.Status, change ledger.StatusChange) (transaction.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("begin commit: %w", err)
	}
	defer dbTx.Rollback()

	row := dbTx.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE id = $1 FOR UPDATE`, txID)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
		}
		return transaction.Transaction{}, err
	}
	if tx.Status != expected {
		return transaction.Transaction{}, fmt.Errorf("transaction %s is %s, expected %s: %w",
			txID, tx.Status, expected, storage.ErrConcurrencyConflict)
	}

	if change.AvailableDelta != 0 || change.PendingDelta != 0 {
		if _, err := adjustWithin(ctx, dbTx, tx.UserID, change.AvailableDelta, change.PendingDelta); err != nil {
			return transaction.Transaction{}, err
		}
	}

	now := time.Now().UTC()
	tx.Status = change.NewStatus
	if change.RejectionReason != "" {
		tx.RejectionReason = change.RejectionReason
	}
	if change.SetReturns {
		tx.DailyReturn = change.DailyReturn
		tx.TotalReturn = change.TotalReturn
	}
	if tx.StatusTimestamps == nil {
		tx.StatusTimestamps = make(map[string]time.Time)
	}
	tx.StatusTimestamps[string(change.NewStatus)] = now
	tx.UpdatedAt = now

	stamps, err := marshalStamps(tx.StatusTimestamps)
	if err != nil {
		return transaction.Transaction{}, err
	}
	res, err := dbTx.ExecContext(ctx, `UPDATE transactions SET
		status = $2, rejection_reason = $3, daily_return = $4, total_return = $5,
		status_timestamps = $6, updated_at = $7
		WHERE id = $1 AND status = $8`,
		tx.ID, string(tx.Status), tx.RejectionReason, tx.DailyReturn, tx.TotalReturn,
		stamps, tx.UpdatedAt, string(expected))
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("commit status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("commit status: %w", err)
	}
	if n == 0 {
		return transaction.Transaction{}, fmt.Errorf("transaction %s changed concurrently: %w", txID, storage.ErrConcurrencyConflict)
	}
	if err := dbTx.Commit(); err != nil {
		return transaction.Transaction{}, fmt.Errorf("commit: %w", err)
	}
	return tx, nil
}

// CommitAccrual credits one daily return and bumps the transaction's accrual
// record in a single database transaction. The accrued_days guard on the
// UPDATE works like the status guard in CommitIfStatus: a stale or concurrent
// runner matches zero rows and the whole transaction, credit included, rolls
// back.
func (s *Store) CommitAccrual(ctx context.Context, txID string, expectedDays int, amount float64, accruedAt time.Time) (transaction.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("begin accrual: %w", err)
	}
	defer dbTx.Rollback()

	row := dbTx.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE id = $1 FOR UPDATE`, txID)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
		}
		return transaction.Transaction{}, err
	}
	if tx.AccruedDays != expectedDays {
		return transaction.Transaction{}, fmt.Errorf("transaction %s accrued %d days, expected %d: %w",
			txID, tx.AccruedDays, expectedDays, storage.ErrConcurrencyConflict)
	}

	if _, err := adjustWithin(ctx, dbTx, tx.UserID, amount, 0); err != nil {
		return transaction.Transaction{}, err
	}

	tx.AccruedDays++
	tx.LastAccruedAt = accruedAt
	tx.UpdatedAt = time.Now().UTC()
	res, err := dbTx.ExecContext(ctx, `UPDATE transactions SET
		accrued_days = $2, last_accrued_at = $3, updated_at = $4
		WHERE id = $1 AND accrued_days = $5`,
		tx.ID, tx.AccruedDays, nullTime(tx.LastAccruedAt), tx.UpdatedAt, expectedDays)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("record accrual: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("record accrual: %w", err)
	}
	if n == 0 {
		return transaction.Transaction{}, fmt.Errorf("transaction %s accrued concurrently: %w", txID, storage.ErrConcurrencyConflict)
	}
	if err := dbTx.Commit(); err != nil {
		return transaction.Transaction{}, fmt.Errorf("commit accrual: %w", err)
	}
	return tx, nil
}

// adjustWithin upserts the balance row and applies both deltas, relying on
// the WHERE guard to reject writes that would break the ledger invariants.
func adjustWithin(ctx context.Context, dbTx *sql.Tx, userID string, availableDelta, pendingDelta float64) (ledger.Balance, error) {
	now := time.Now().UTC()
	if _, err := dbTx.ExecContext(ctx, `INSERT INTO balances (user_id, available, pending, updated_at)
		VALUES ($1, 0, 0, $2) ON CONFLICT (user_id) DO NOTHING`, userID, now); err != nil {
		return ledger.Balance{}, fmt.Errorf("ensure balance: %w", err)
	}
	bal := ledger.Balance{UserID: userID}
	err := dbTx.QueryRowContext(ctx, `UPDATE balances SET
		available = available + $2, pending = pending + $3, updated_at = $4
		WHERE user_id = $1
		  AND available + $2 >= 0
		  AND pending + $3 >= 0
		  AND pending + $3 <= available + $2
		RETURNING available, pending, updated_at`,
		userID, availableDelta, pendingDelta, now).Scan(&bal.Available, &bal.Pending, &bal.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Balance{}, fmt.Errorf("user %s: %w", userID, storage.ErrInsufficientFunds)
	}
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("adjust balance: %w", err)
	}
	return bal, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (transaction.Transaction, error) {
	var (
		tx           transaction.Transaction
		kind, status string
		lastAccrued  sql.NullTime
		stamps       []byte
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.ReferenceID, &kind, &tx.Amount, &tx.Currency,
		&tx.Method, &tx.PlanID, &tx.Fee, &tx.NetAmount, &status, &tx.RejectionReason,
		&tx.DailyReturn, &tx.TotalReturn, &tx.AccruedDays, &lastAccrued, &stamps,
		&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, err
	}
	tx.Kind = transaction.Kind(kind)
	tx.Status = transaction.Status(status)
	if lastAccrued.Valid {
		tx.LastAccruedAt = lastAccrued.Time
	}
	if len(stamps) > 0 {
		if err := json.Unmarshal(stamps, &tx.StatusTimestamps); err != nil {
			return transaction.Transaction{}, fmt.Errorf("decode status timestamps: %w", err)
		}
	}
	return tx, nil
}

func collectTransactions(rows *sql.Rows) ([]transaction.Transaction, error) {
	defer rows.Close()
	var out []transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func marshalStamps(stamps map[string]time.Time) ([]byte, error) {
	if stamps == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(stamps)
	if err != nil {
		return nil, fmt.Errorf("encode status timestamps: %w", err)
	}
	return b, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
