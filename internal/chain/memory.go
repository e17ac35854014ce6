package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
)

// MemoryGateway is an in-memory Gateway implementation for tests and local
// simulation. Reads are scripted per contract/method and receipts are
// delivered explicitly or auto-confirmed.
type MemoryGateway struct {
	mu sync.Mutex

	reads          map[string]*InvokeResult
	methodReceipts map[string]*Receipt
	submitErr      error
	autoConfirm    bool
	seq            int

	submitted []WriteRequest
	receipts  map[string]*Receipt
	waiters   map[string]chan *Receipt
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		reads:          make(map[string]*InvokeResult),
		methodReceipts: make(map[string]*Receipt),
		receipts:       make(map[string]*Receipt),
		waiters:        make(map[string]chan *Receipt),
	}
}

func readKey(contract, method string) string { return contract + "." + method }

// SetRead scripts the result of a contract read.
func (g *MemoryGateway) SetRead(contract, method string, result *InvokeResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads[readKey(contract, method)] = result
}

// SetIntegerRead scripts a read returning a single integer stack item.
func (g *MemoryGateway) SetIntegerRead(contract, method string, value *big.Int) {
	g.SetRead(contract, method, IntegerResult(value))
}

// StubReceipt makes every submission of the given method confirm immediately
// with a copy of receipt, so multi-step flows can run without explicit
// receipt delivery.
func (g *MemoryGateway) StubReceipt(method string, receipt *Receipt) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.methodReceipts[method] = receipt
}

// FailSubmit makes every subsequent SubmitWrite fail with err.
func (g *MemoryGateway) FailSubmit(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitErr = err
}

// AutoConfirm makes every submission produce an immediate success receipt.
func (g *MemoryGateway) AutoConfirm(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoConfirm = on
}

// Submitted returns a copy of all write requests seen so far.
func (g *MemoryGateway) Submitted() []WriteRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]WriteRequest, len(g.submitted))
	copy(out, g.submitted)
	return out
}

// ReadContract returns the scripted result for contract/method.
func (g *MemoryGateway) ReadContract(ctx context.Context, contract, method string, params []ContractParam) (*InvokeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	result, ok := g.reads[readKey(contract, method)]
	if !ok {
		return nil, fmt.Errorf("no scripted read for %s.%s", contract, method)
	}
	return result, nil
}

// SubmitWrite records the request and returns a synthetic transaction ID.
func (g *MemoryGateway) SubmitWrite(ctx context.Context, req WriteRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitErr != nil {
		return "", g.submitErr
	}

	g.seq++
	txID := fmt.Sprintf("0xmem%04d", g.seq)
	g.submitted = append(g.submitted, req)

	if stub, ok := g.methodReceipts[req.Method]; ok {
		cp := *stub
		cp.TxID = txID
		g.receipts[txID] = &cp
	} else if g.autoConfirm {
		g.receipts[txID] = &Receipt{TxID: txID, Success: true}
	}
	return txID, nil
}

// DeliverReceipt makes a receipt available for txID, waking any waiter.
func (g *MemoryGateway) DeliverReceipt(txID string, receipt *Receipt) {
	g.mu.Lock()
	defer g.mu.Unlock()
	receipt.TxID = txID
	g.receipts[txID] = receipt
	if ch, ok := g.waiters[txID]; ok {
		ch <- receipt
		delete(g.waiters, txID)
	}
}

// WaitReceipt blocks until a receipt for txID is delivered or ctx is done.
func (g *MemoryGateway) WaitReceipt(ctx context.Context, txID string) (*Receipt, error) {
	g.mu.Lock()
	if receipt, ok := g.receipts[txID]; ok {
		g.mu.Unlock()
		return receipt, nil
	}
	ch := make(chan *Receipt, 1)
	g.waiters[txID] = ch
	g.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case receipt := <-ch:
		return receipt, nil
	}
}

// IntegerResult builds an InvokeResult whose stack holds one integer.
func IntegerResult(value *big.Int) *InvokeResult {
	raw, _ := json.Marshal(value.String())
	return &InvokeResult{
		State: "HALT",
		Stack: []StackItem{{Type: "Integer", Value: raw}},
	}
}

var _ Gateway = (*MemoryGateway)(nil)
