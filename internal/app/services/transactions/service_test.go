package transactions

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ameer851/axix-finance-sub002/internal/app/auth"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/plans"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage/memory"
)

var adminActor = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	catalog, err := plans.NewCatalog(plans.DefaultPlans())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	store := memory.New()
	return New(catalog, store, store, nil), store
}

func seedBalance(t *testing.T, store *memory.Store, userID string, available float64) {
	t.Helper()
	if _, err := store.AdjustBalance(context.Background(), userID, available, 0); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
}

func TestCreateDepositValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing user", CreateInput{Kind: transaction.KindDeposit, Amount: 100, Method: "card"}},
		{"zero amount", CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 0, Method: "card"}},
		{"negative amount", CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: -5, Method: "card"}},
		{"missing method", CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 100}},
		{"unknown kind", CreateInput{UserID: "u1", Kind: "transfer", Amount: 100, Method: "card"}},
		{"plan on withdrawal", CreateInput{UserID: "u1", Kind: transaction.KindWithdrawal, Amount: 100, Method: "bank", PlanID: "starter"}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.input); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}

	// Failed validation must leave no transactions behind.
	txs, err := svc.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions after failed validation, got %d", len(txs))
	}
}

func TestCreateDepositAgainstPlanTier(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var rangeErr *plans.AmountRangeError
	_, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 40, Method: "card", PlanID: "starter"})
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected AmountRangeError, got %v", err)
	}

	tx, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card", PlanID: "starter"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.Status != transaction.StatusPending {
		t.Fatalf("new deposit status = %s, want pending", tx.Status)
	}
	if tx.PlanID != "starter" {
		t.Fatalf("plan id = %q, want starter", tx.PlanID)
	}
	if !strings.HasPrefix(tx.ReferenceID, "TXN-") {
		t.Fatalf("reference id %q should carry the TXN- prefix", tx.ReferenceID)
	}
	if _, ok := tx.StatusTimestamps[string(transaction.StatusPending)]; !ok {
		t.Fatal("pending timestamp should be recorded at creation")
	}
}

func TestBalanceFundedDepositDebitsOnceAtCreation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "u1", 1000)

	tx, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 200, Method: MethodBalance, PlanID: "starter"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	bal, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal.Available != 800 {
		t.Fatalf("available after creation = %v, want 800", bal.Available)
	}

	// Confirmation is status-only for balance-funded deposits.
	confirmed, err := svc.Transition(ctx, tx.ID, transaction.ActionConfirm, "", adminActor)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != transaction.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", confirmed.Status)
	}
	bal, _ = svc.Balance(ctx, "u1")
	if bal.Available != 800 {
		t.Fatalf("available after confirm = %v, want 800 (no double debit or credit)", bal.Available)
	}
	if confirmed.DailyReturn != 4 || confirmed.TotalReturn != 212 {
		t.Fatalf("returns = %v / %v, want 4 / 212", confirmed.DailyReturn, confirmed.TotalReturn)
	}
}

func TestBalanceFundedDepositInsufficientFunds(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "u1", 100)

	_, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 200, Method: MethodBalance})
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	txs, _ := svc.ListForUser(ctx, "u1")
	if len(txs) != 0 {
		t.Fatalf("failed debit must leave no transaction, got %d", len(txs))
	}
	bal, _ := svc.Balance(ctx, "u1")
	if bal.Available != 100 {
		t.Fatalf("available = %v, want untouched 100", bal.Available)
	}
}

func TestExternalDepositCreditsOnConfirm(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	bal, _ := svc.Balance(ctx, "u1")
	if bal.Available != 0 {
		t.Fatalf("external deposit must not credit before confirmation, got %v", bal.Available)
	}

	if _, err := svc.Transition(ctx, tx.ID, transaction.ActionConfirm, "", adminActor); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	bal, _ = svc.Balance(ctx, "u1")
	if bal.Available != 500 {
		t.Fatalf("available after confirm = %v, want 500", bal.Available)
	}
}

func TestDepositFailRecordsReason(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, _ := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card"})

	failed, err := svc.Transition(ctx, tx.ID, transaction.ActionFail, "", adminActor)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != transaction.StatusFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}
	if failed.RejectionReason != DefaultRejectionReason {
		t.Fatalf("blank reason should default, got %q", failed.RejectionReason)
	}

	bal, _ := svc.Balance(ctx, "u1")
	if bal.Available != 0 {
		t.Fatalf("failed deposit must not credit, got %v", bal.Available)
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "u1", 1000)

	tx, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindWithdrawal, Amount: 200, Method: "bank"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.Fee != 6 {
		t.Fatalf("fee = %v, want 6 (3%% of 200)", tx.Fee)
	}
	if tx.NetAmount != 194 {
		t.Fatalf("net amount = %v, want 194", tx.NetAmount)
	}

	// Creation reserves the amount without spending it.
	bal, _ := svc.Balance(ctx, "u1")
	if bal.Available != 1000 || bal.Pending != 200 {
		t.Fatalf("after creation: available %v pending %v, want 1000 / 200", bal.Available, bal.Pending)
	}

	for _, action := range []transaction.Action{transaction.ActionApprove, transaction.ActionProcess} {
		if _, err := svc.Transition(ctx, tx.ID, action, "", adminActor); err != nil {
			t.Fatalf("%s: %v", action, err)
		}
		bal, _ = svc.Balance(ctx, "u1")
		if bal.Available != 1000 || bal.Pending != 200 {
			t.Fatalf("after %s: available %v pending %v, want unchanged", action, bal.Available, bal.Pending)
		}
	}

	done, err := svc.Transition(ctx, tx.ID, transaction.ActionComplete, "", adminActor)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != transaction.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	bal, _ = svc.Balance(ctx, "u1")
	if bal.Available != 800 || bal.Pending != 0 {
		t.Fatalf("after completion: available %v pending %v, want 800 / 0", bal.Available, bal.Pending)
	}
}

func TestWithdrawalRejectReleasesReservation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "u1", 1000)

	tx, _ := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindWithdrawal, Amount: 200, Method: "bank"})

	rejected, err := svc.Transition(ctx, tx.ID, transaction.ActionReject, "suspicious destination", adminActor)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectionReason != "suspicious destination" {
		t.Fatalf("reason = %q", rejected.RejectionReason)
	}
	bal, _ := svc.Balance(ctx, "u1")
	if bal.Available != 1000 || bal.Pending != 0 {
		t.Fatalf("after reject: available %v pending %v, want 1000 / 0", bal.Available, bal.Pending)
	}
}

func TestWithdrawalOverAvailableFails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "u1", 100)

	_, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindWithdrawal, Amount: 200, Method: "bank"})
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	txs, _ := svc.ListForUser(ctx, "u1")
	if len(txs) != 0 {
		t.Fatalf("over-available withdrawal must leave no state, got %d transactions", len(txs))
	}
}

func TestTerminalStatesAbsorb(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, _ := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card"})
	if _, err := svc.Transition(ctx, tx.ID, transaction.ActionConfirm, "", adminActor); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	for _, action := range []transaction.Action{transaction.ActionConfirm, transaction.ActionFail} {
		if _, err := svc.Transition(ctx, tx.ID, action, "", adminActor); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s on confirmed deposit: expected ErrInvalidTransition, got %v", action, err)
		}
	}

	// The absorbed attempts must not have touched the balance again.
	bal, _ := svc.Balance(ctx, "u1")
	if bal.Available != 500 {
		t.Fatalf("available = %v, want 500", bal.Available)
	}
}

func TestActionsBoundToKind(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedBalance(t, store, "u1", 1000)

	dep, _ := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card"})
	if _, err := svc.Transition(ctx, dep.ID, transaction.ActionApprove, "", adminActor); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve on deposit: expected ErrInvalidTransition, got %v", err)
	}

	wd, _ := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindWithdrawal, Amount: 200, Method: "bank"})
	if _, err := svc.Transition(ctx, wd.ID, transaction.ActionConfirm, "", adminActor); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirm on withdrawal: expected ErrInvalidTransition, got %v", err)
	}
	// Completing a pending withdrawal skips approval and must fail.
	if _, err := svc.Transition(ctx, wd.ID, transaction.ActionComplete, "", adminActor); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete on pending withdrawal: expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, _ := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card"})

	user := auth.Actor{ID: "u1", Role: auth.RoleUser}
	if _, err := svc.Transition(ctx, tx.ID, transaction.ActionConfirm, "", user); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestConcurrentConfirmCreditsExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transition(ctx, tx.ID, transaction.ActionConfirm, "", adminActor)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, storage.ErrConcurrencyConflict), errors.Is(err, ErrInvalidTransition):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("exactly one confirm must win, got %d", ok)
	}
	if conflicts != attempts-1 {
		t.Fatalf("losers = %d, want %d", conflicts, attempts-1)
	}

	bal, _ := svc.Balance(ctx, "u1")
	if bal.Available != 500 {
		t.Fatalf("balance credited %v, want exactly one credit of 500", bal.Available)
	}
}

func TestWithFeePercent(t *testing.T) {
	catalog, _ := plans.NewCatalog(plans.DefaultPlans())
	store := memory.New()
	svc := New(catalog, store, store, nil, WithFeePercent(10))
	ctx := context.Background()
	seedBalance(t, store, "u1", 1000)

	tx, err := svc.Create(ctx, CreateInput{UserID: "u1", Kind: transaction.KindWithdrawal, Amount: 200, Method: "bank"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.Fee != 20 || tx.NetAmount != 180 {
		t.Fatalf("fee/net = %v/%v, want 20/180", tx.Fee, tx.NetAmount)
	}
}
