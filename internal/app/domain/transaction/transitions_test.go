package transaction

import "testing"

func TestDepositGraph(t *testing.T) {
	if !CanTransition(KindDeposit, StatusPending, StatusConfirmed) {
		t.Fatal("pending -> confirmed must be valid for deposits")
	}
	if !CanTransition(KindDeposit, StatusPending, StatusFailed) {
		t.Fatal("pending -> failed must be valid for deposits")
	}
	if CanTransition(KindDeposit, StatusPending, StatusApproved) {
		t.Fatal("deposits never approve")
	}
	if CanTransition(KindDeposit, StatusConfirmed, StatusPending) {
		t.Fatal("terminal states have no outgoing edges")
	}
}

func TestWithdrawalGraph(t *testing.T) {
	valid := [][2]Status{
		{StatusPending, StatusApproved},
		{StatusPending, StatusRejected},
		{StatusApproved, StatusProcessing},
		{StatusProcessing, StatusCompleted},
	}
	for _, edge := range valid {
		if !CanTransition(KindWithdrawal, edge[0], edge[1]) {
			t.Fatalf("%s -> %s must be valid for withdrawals", edge[0], edge[1])
		}
	}

	invalid := [][2]Status{
		{StatusPending, StatusProcessing}, // cannot skip approval
		{StatusPending, StatusCompleted},
		{StatusApproved, StatusCompleted}, // cannot skip processing
		{StatusRejected, StatusApproved},  // terminal
		{StatusCompleted, StatusPending},  // terminal
	}
	for _, edge := range invalid {
		if CanTransition(KindWithdrawal, edge[0], edge[1]) {
			t.Fatalf("%s -> %s must be invalid for withdrawals", edge[0], edge[1])
		}
	}
}

func TestTerminal(t *testing.T) {
	cases := []struct {
		kind   Kind
		status Status
		want   bool
	}{
		{KindDeposit, StatusPending, false},
		{KindDeposit, StatusConfirmed, true},
		{KindDeposit, StatusFailed, true},
		{KindWithdrawal, StatusPending, false},
		{KindWithdrawal, StatusApproved, false},
		{KindWithdrawal, StatusProcessing, false},
		{KindWithdrawal, StatusRejected, true},
		{KindWithdrawal, StatusCompleted, true},
	}
	for _, tc := range cases {
		if got := Terminal(tc.kind, tc.status); got != tc.want {
			t.Fatalf("Terminal(%s, %s) = %v, want %v", tc.kind, tc.status, got, tc.want)
		}
	}
}

func TestActionTargetAndSource(t *testing.T) {
	if _, ok := ActionTarget(KindDeposit, ActionApprove); ok {
		t.Fatal("approve does not apply to deposits")
	}
	target, ok := ActionTarget(KindWithdrawal, ActionComplete)
	if !ok || target != StatusCompleted {
		t.Fatalf("complete target = %s ok=%v", target, ok)
	}

	source, ok := Source(KindWithdrawal, ActionComplete)
	if !ok || source != StatusProcessing {
		t.Fatalf("complete source = %s ok=%v, want processing", source, ok)
	}
	source, ok = Source(KindDeposit, ActionConfirm)
	if !ok || source != StatusPending {
		t.Fatalf("confirm source = %s ok=%v, want pending", source, ok)
	}
	if _, ok := Source(KindDeposit, ActionComplete); ok {
		t.Fatal("complete has no source for deposits")
	}
}
