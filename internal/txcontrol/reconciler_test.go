package txcontrol

import (
	"strings"
	"testing"

	"github.com/curvelabs/launchpad/internal/chain"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name      string
		receipt   *chain.Receipt
		trackedID string
		want      Decision
	}{
		{"match", &chain.Receipt{TxID: "0x1"}, "0x1", DecisionAccept},
		{"mismatch", &chain.Receipt{TxID: "0x1"}, "0x2", DecisionIgnore},
		{"nothing tracked", &chain.Receipt{TxID: "0x1"}, "", DecisionIgnore},
		{"nil receipt", nil, "0x1", DecisionIgnore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reconcile(tt.receipt, tt.trackedID); got != tt.want {
				t.Fatalf("Reconcile = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultMessage_RoleAffectsTextOnly(t *testing.T) {
	ok := &chain.Receipt{TxID: "0x1", Success: true}
	if msg := ResultMessage(ok, RoleApproval); !strings.Contains(msg, "approval") {
		t.Fatalf("approval message missing role wording: %q", msg)
	}
	if msg := ResultMessage(ok, RoleAction); strings.Contains(msg, "approval") {
		t.Fatalf("action message carries approval wording: %q", msg)
	}

	bad := &chain.Receipt{TxID: "0x1", Success: false, RevertReason: "curve: paused"}
	if msg := ResultMessage(bad, RoleAction); !strings.Contains(msg, "curve: paused") {
		t.Fatalf("revert reason not surfaced: %q", msg)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusIdle, StatusSubmitting, StatusAwaitingConfirmation, StatusConfirmed, StatusReverted, StatusError} {
		if got := ParseStatus(s.String()); got != s {
			t.Fatalf("ParseStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}
	if !StatusConfirmed.Terminal() || StatusSubmitting.Terminal() {
		t.Fatalf("terminal classification wrong")
	}
	if StatusSubmitting.Resubmittable() {
		t.Fatalf("submitting must not allow resubmission")
	}
	if !StatusAwaitingConfirmation.Resubmittable() {
		t.Fatalf("awaiting confirmation must allow supersede")
	}
}
