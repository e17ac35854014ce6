package allowance

import (
	"context"
	"math/big"
	"testing"

	"github.com/curvelabs/launchpad/internal/chain"
)

func TestRecord_NeedsApproval(t *testing.T) {
	tests := []struct {
		allowance int64
		required  int64
		want      bool
	}{
		{0, 100, true},
		{99, 100, true},
		{100, 100, false},
		{101, 100, false},
		{0, 0, false},
		{50, 0, false},
	}
	for _, tt := range tests {
		r := Record{Amount: big.NewInt(tt.allowance)}
		if got := r.NeedsApproval(big.NewInt(tt.required)); got != tt.want {
			t.Fatalf("NeedsApproval(allowance=%d, required=%d) = %v, want %v",
				tt.allowance, tt.required, got, tt.want)
		}
	}
}

func TestGate_Check(t *testing.T) {
	gw := chain.NewMemoryGateway()
	gw.SetIntegerRead("0xtoken", "allowance", big.NewInt(40))
	gate := NewGate(gw)

	res, err := gate.Check(context.Background(), "0xowner", "0xspender", "0xtoken", big.NewInt(100))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Sufficient {
		t.Fatalf("expected insufficient with allowance 40 < required 100")
	}
	if res.CurrentAllowance.Int64() != 40 {
		t.Fatalf("current allowance = %s, want 40", res.CurrentAllowance)
	}

	// The gate never assumes its previous answer remains valid: a fresh read
	// after an approval must flip the result.
	gw.SetIntegerRead("0xtoken", "allowance", big.NewInt(100))
	res, err = gate.Check(context.Background(), "0xowner", "0xspender", "0xtoken", big.NewInt(100))
	if err != nil {
		t.Fatalf("re-check: %v", err)
	}
	if !res.Sufficient {
		t.Fatalf("expected sufficient after approval raised allowance to 100")
	}
}

func TestGate_Check_ZeroRequiredSkipsRead(t *testing.T) {
	// No scripted read: a zero requirement must not touch the ledger.
	gate := NewGate(chain.NewMemoryGateway())

	res, err := gate.Check(context.Background(), "0xowner", "0xspender", "0xtoken", big.NewInt(0))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Sufficient {
		t.Fatalf("zero requirement must always be sufficient")
	}

	res, err = gate.Check(context.Background(), "0xowner", "0xspender", "0xtoken", nil)
	if err != nil || !res.Sufficient {
		t.Fatalf("nil requirement must always be sufficient, got %v %v", res, err)
	}
}
