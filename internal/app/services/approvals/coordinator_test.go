package approvals

import (
	"context"
	"testing"

	"github.com/ameer851/axix-finance-sub002/internal/app/auth"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/plans"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/transactions"
	"github.com/ameer851/axix-finance-sub002/internal/app/storage/memory"
)

var adminActor = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}

func newTestCoordinator(t *testing.T) (*Coordinator, *transactions.Service, *memory.Store) {
	t.Helper()
	catalog, err := plans.NewCatalog(plans.DefaultPlans())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	store := memory.New()
	machine := transactions.New(catalog, store, store, nil)
	return New(machine, nil), machine, store
}

func TestApplyBulkPartialFailure(t *testing.T) {
	coord, machine, _ := newTestCoordinator(t)
	ctx := context.Background()

	pending1, err := machine.Create(ctx, transactions.CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	pending2, err := machine.Create(ctx, transactions.CreateInput{UserID: "u2", Kind: transaction.KindDeposit, Amount: 300, Method: "card"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	already, err := machine.Create(ctx, transactions.CreateInput{UserID: "u3", Kind: transaction.KindDeposit, Amount: 100, Method: "card"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := machine.Transition(ctx, already.ID, transaction.ActionConfirm, "", adminActor); err != nil {
		t.Fatalf("pre-confirm: %v", err)
	}

	ids := []string{pending1.ID, already.ID, pending2.ID, "missing-id"}
	result := coord.ApplyBulk(ctx, ids, transaction.ActionConfirm, "", adminActor)

	if len(result.Succeeded) != 2 {
		t.Fatalf("succeeded = %d, want 2", len(result.Succeeded))
	}
	if len(result.Failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(result.Failed))
	}
	if len(result.Succeeded)+len(result.Failed) != len(ids) {
		t.Fatal("every id must land in exactly one bucket")
	}

	reasons := map[string]string{}
	for _, f := range result.Failed {
		reasons[f.ID] = f.Reason
	}
	if reasons[already.ID] != "invalid_transition" {
		t.Fatalf("already-confirmed reason = %q, want invalid_transition", reasons[already.ID])
	}
	if reasons["missing-id"] != "not_found" {
		t.Fatalf("missing id reason = %q, want not_found", reasons["missing-id"])
	}

	// Earlier failures must not block later items.
	got, err := machine.Get(ctx, pending2.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != transaction.StatusConfirmed {
		t.Fatalf("pending2 status = %s, want confirmed", got.Status)
	}
}

func TestApplyBulkForbiddenForNonAdmin(t *testing.T) {
	coord, machine, _ := newTestCoordinator(t)
	ctx := context.Background()

	tx, _ := machine.Create(ctx, transactions.CreateInput{UserID: "u1", Kind: transaction.KindDeposit, Amount: 500, Method: "card"})

	result := coord.ApplyBulk(ctx, []string{tx.ID}, transaction.ActionConfirm, "",
		auth.Actor{ID: "u1", Role: auth.RoleUser})
	if len(result.Succeeded) != 0 || len(result.Failed) != 1 {
		t.Fatalf("expected single forbidden failure, got %+v", result)
	}
	if result.Failed[0].Reason != "forbidden" {
		t.Fatalf("reason = %q, want forbidden", result.Failed[0].Reason)
	}
}

func TestApplySinglePassesErrorThrough(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.ApplySingle(ctx, "missing", transaction.ActionConfirm, "", adminActor); err == nil {
		t.Fatal("expected error for missing transaction")
	}
}
