package txcontrol

import (
	"fmt"

	"github.com/curvelabs/launchpad/internal/chain"
)

// Decision is the outcome of reconciling a receipt against the tracked
// submission.
type Decision int

const (
	// DecisionIgnore means the receipt belongs to a superseded or unrelated
	// submission and must not change any state.
	DecisionIgnore Decision = iota

	// DecisionAccept means the receipt matches the tracked submission.
	DecisionAccept
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	if d == DecisionAccept {
		return "accept"
	}
	return "ignore"
}

// Reconcile decides whether a receipt belongs to the currently tracked
// submission. The transaction ID match is the sole correctness criterion;
// the role is not consulted here.
func Reconcile(receipt *chain.Receipt, trackedID string) Decision {
	if receipt == nil || trackedID == "" || receipt.TxID != trackedID {
		return DecisionIgnore
	}
	return DecisionAccept
}

// ResultMessage renders the user-facing outcome for an accepted receipt.
// This is where the role matters: approvals and actions read differently.
func ResultMessage(receipt *chain.Receipt, role Role) string {
	if receipt.Success {
		if role == RoleApproval {
			return "spending approval confirmed"
		}
		return "transaction confirmed"
	}
	if role == RoleApproval {
		return fmt.Sprintf("spending approval reverted: %s", receipt.RevertReason)
	}
	return fmt.Sprintf("transaction reverted: %s", receipt.RevertReason)
}
