// Package allowance gates value-moving actions behind a live spending
// approval check against the ledger.
package allowance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/curvelabs/launchpad/internal/chain"
)

// Record is a point-in-time allowance read. It is never cached across an
// (owner, spender, token) change; callers re-invoke Check after every
// approval confirmation.
type Record struct {
	Owner   string
	Spender string
	Token   string
	Amount  *big.Int
}

// NeedsApproval reports whether the recorded allowance falls short of the
// required amount.
func (r Record) NeedsApproval(required *big.Int) bool {
	if required == nil || required.Sign() == 0 {
		return false
	}
	if r.Amount == nil {
		return true
	}
	return r.Amount.Cmp(required) < 0
}

// Result is the outcome of an allowance check.
type Result struct {
	Sufficient       bool
	CurrentAllowance *big.Int
}

// Gate performs pure allowance reads through a ledger gateway.
type Gate struct {
	gateway chain.Gateway
}

// NewGate creates an allowance gate.
func NewGate(gateway chain.Gateway) *Gate {
	return &Gate{gateway: gateway}
}

// Check reads the live allowance and compares it against the required
// amount. Sufficient iff currentAllowance >= required; a zero requirement is
// always sufficient, with no read issued.
func (g *Gate) Check(ctx context.Context, owner, spender, token string, required *big.Int) (Result, error) {
	if required == nil || required.Sign() == 0 {
		return Result{Sufficient: true, CurrentAllowance: big.NewInt(0)}, nil
	}

	current, err := g.read(ctx, owner, spender, token)
	if err != nil {
		return Result{}, err
	}

	record := Record{Owner: owner, Spender: spender, Token: token, Amount: current}
	return Result{
		Sufficient:       !record.NeedsApproval(required),
		CurrentAllowance: current,
	}, nil
}

func (g *Gate) read(ctx context.Context, owner, spender, token string) (*big.Int, error) {
	result, err := g.gateway.ReadContract(ctx, token, "allowance", []chain.ContractParam{
		chain.Hash160Param(owner),
		chain.Hash160Param(spender),
	})
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if result.State != "HALT" {
		return nil, fmt.Errorf("allowance read faulted: %s", chain.ParseRevertReason(result.Exception))
	}
	if len(result.Stack) == 0 {
		return nil, fmt.Errorf("allowance read returned empty stack")
	}

	amount, err := chain.ParseInteger(result.Stack[0])
	if err != nil {
		return nil, fmt.Errorf("decode allowance: %w", err)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative allowance %s", amount)
	}
	return amount, nil
}
