package transaction

// Action is an operator-facing transition request.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionFail     Action = "fail"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionProcess  Action = "process"
	ActionComplete Action = "complete"
)

// transitions holds the kind-specific status graphs. Anything not listed is
// an invalid transition.
var transitions = map[Kind]map[Status][]Status{
	KindDeposit: {
		StatusPending: {StatusConfirmed, StatusFailed},
	},
	KindWithdrawal: {
		StatusPending:    {StatusApproved, StatusRejected},
		StatusApproved:   {StatusProcessing},
		StatusProcessing: {StatusCompleted},
	},
}

// actionTargets maps an action to the status it lands in, per kind.
var actionTargets = map[Kind]map[Action]Status{
	KindDeposit: {
		ActionConfirm: StatusConfirmed,
		ActionFail:    StatusFailed,
	},
	KindWithdrawal: {
		ActionApprove:  StatusApproved,
		ActionReject:   StatusRejected,
		ActionProcess:  StatusProcessing,
		ActionComplete: StatusCompleted,
	},
}

// Terminal reports whether no further transition can leave the status for
// the given kind.
func Terminal(kind Kind, status Status) bool {
	edges, ok := transitions[kind]
	if !ok {
		return true
	}
	return len(edges[status]) == 0
}

// CanTransition reports whether from -> to is an edge in the kind's graph.
func CanTransition(kind Kind, from, to Status) bool {
	for _, next := range transitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActionTarget resolves an action to its target status for the kind. The
// second return is false when the action does not apply to the kind at all.
func ActionTarget(kind Kind, action Action) (Status, bool) {
	target, ok := actionTargets[kind][action]
	return target, ok
}

// Source returns the only status the action may depart from. Every edge in
// both graphs has exactly one valid source, which is what makes the
// compare-and-commit pre-state check well defined.
func Source(kind Kind, action Action) (Status, bool) {
	target, ok := actionTargets[kind][action]
	if !ok {
		return "", false
	}
	for from, tos := range transitions[kind] {
		for _, to := range tos {
			if to == target {
				return from, true
			}
		}
	}
	return "", false
}
