// Package accrual credits daily investment profit for confirmed plan
// deposits as a scheduled background job. The confirmation transition only
// guarantees the principal; everything beyond it is paid out here.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
	"github.com/ameer851/axix-finance-sub002/internal/app/metrics"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/plans"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage"
	"github.com/ameer851/axix-finance-sub002/internal/app/system"
	"github.com/ameer851/axix-finance-sub002/pkg/logger"
)

const minAccrualGap = 24 * time.Hour

// Runner walks confirmed plan deposits on a cron schedule and credits one
// daily return per elapsed day, stopping at the plan duration.
type Runner struct {
	catalog  *plans.Catalog
	store    storage.TransactionStore
	ledger   storage.LedgerStore
	schedule cron.Schedule
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Runner)(nil)

// NewRunner builds a runner. spec is a cron expression ("@daily",
// "@every 1h", standard five-field specs).
func NewRunner(catalog *plans.Catalog, store storage.TransactionStore, ldg storage.LedgerStore, spec string, log *logger.Logger) (*Runner, error) {
	if log == nil {
		log = logger.NewDefault("accrual")
	}
	if spec == "" {
		spec = "@every 1h"
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse accrual schedule %q: %w", spec, err)
	}
	return &Runner{
		catalog:  catalog,
		store:    store,
		ledger:   ldg,
		schedule: schedule,
		log:      log,
	}, nil
}

func (r *Runner) Name() string { return "accrual" }

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			next := r.schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-runCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				r.runOnce(runCtx)
			}
		}
	}()

	r.log.Info("accrual runner started")
	return nil
}

func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// runOnce credits every due deposit. Individual failures are logged and do
// not block the remaining deposits.
func (r *Runner) runOnce(ctx context.Context) {
	deposits, err := r.store.ListByStatus(ctx, transaction.KindDeposit, transaction.StatusConfirmed)
	if err != nil {
		r.log.WithError(err).Warn("list confirmed deposits failed")
		return
	}

	now := time.Now().UTC()
	for _, tx := range deposits {
		if tx.PlanID == "" {
			continue
		}
		if _, err := r.AccrueOnce(ctx, tx, now); err != nil {
			r.log.WithError(err).Warnf("accrue deposit %s failed", tx.ID)
		}
	}
}

// AccrueOnce credits one daily return to the deposit's owner if a full day
// has elapsed since the previous credit and the plan duration is not yet
// exhausted. It returns false without error when the deposit is not due.
func (r *Runner) AccrueOnce(ctx context.Context, tx transaction.Transaction, now time.Time) (bool, error) {
	p, err := r.catalog.Find(tx.PlanID)
	if err != nil {
		return false, err
	}
	if tx.AccruedDays >= p.DurationDays {
		return false, nil
	}

	last := tx.LastAccruedAt
	if last.IsZero() {
		if confirmedAt, ok := tx.StatusTimestamps[string(transaction.StatusConfirmed)]; ok {
			last = confirmedAt
		} else {
			last = tx.CreatedAt
		}
	}
	if now.Sub(last) < minAccrualGap {
		return false, nil
	}

	amount := plans.DailyReturn(p, tx.Amount)
	// The credit and the accrual record commit together; a stale snapshot
	// of the deposit conflicts instead of paying the same day twice.
	committed, err := r.ledger.CommitAccrual(ctx, tx.ID, tx.AccruedDays, amount, now)
	if err != nil {
		if errors.Is(err, storage.ErrConcurrencyConflict) {
			return false, nil
		}
		metrics.RecordAccrual(false)
		return false, fmt.Errorf("accrue deposit %s: %w", tx.ID, err)
	}

	metrics.RecordAccrual(true)
	r.log.WithField("transaction_id", committed.ID).
		WithField("user_id", committed.UserID).
		WithField("day", committed.AccruedDays).
		Infof("credited daily return %.2f", amount)
	return true, nil
}
