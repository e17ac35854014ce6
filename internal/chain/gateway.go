package chain

import (
	"context"
	"fmt"
	"time"
)

// Gateway abstracts ledger access for the orchestration core. Reads are
// synchronous-looking but asynchronous; writes return a transaction ID and the
// receipt arrives later via WaitReceipt.
type Gateway interface {
	// ReadContract invokes a read-only contract function.
	ReadContract(ctx context.Context, contract, method string, params []ContractParam) (*InvokeResult, error)

	// SubmitWrite submits a signed state-changing call and returns the
	// transaction ID, or fails synchronously with a classified reason.
	SubmitWrite(ctx context.Context, req WriteRequest) (string, error)

	// WaitReceipt blocks until a receipt for txID is mined or ctx is done.
	// There is no client-side timeout; confirmation waits are bounded only
	// by the caller's context.
	WaitReceipt(ctx context.Context, txID string) (*Receipt, error)
}

// RPCGateway implements Gateway against a ledger RPC node. The node holds the
// session wallet and signs relayed invocations.
type RPCGateway struct {
	client       *Client
	pollInterval time.Duration
}

// NewRPCGateway creates a gateway over the given client.
func NewRPCGateway(client *Client, pollInterval time.Duration) *RPCGateway {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &RPCGateway{client: client, pollInterval: pollInterval}
}

// ReadContract invokes a read-only contract function.
func (g *RPCGateway) ReadContract(ctx context.Context, contract, method string, params []ContractParam) (*InvokeResult, error) {
	result, err := g.client.InvokeRead(ctx, contract, method, params)
	if err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", contract, method, err)
	}
	return result, nil
}

// SubmitWrite submits a state-changing invocation. A preflight FAULT is
// surfaced as a classified submission failure before anything hits the chain.
func (g *RPCGateway) SubmitWrite(ctx context.Context, req WriteRequest) (string, error) {
	args := []interface{}{req.Contract, req.Method, req.Params}
	if req.Signer != "" {
		args = append(args, []Signer{{Account: req.Signer, Scopes: "CalledByEntry"}})
	}

	raw, err := g.client.Call(ctx, "invokefunction", args)
	if err != nil {
		return "", ClassifyError(err)
	}

	var result InvokeResult
	if err := unmarshalInvokeResult(raw, &result); err != nil {
		return "", err
	}

	if result.State != "HALT" {
		return "", &Failure{
			Kind:   FailureReverted,
			Reason: ParseRevertReason(result.Exception),
		}
	}
	if result.Tx == "" {
		return "", &Failure{Kind: FailureUserRejected, Reason: "signer did not relay transaction"}
	}

	return result.Tx, nil
}

// WaitReceipt waits for the application log of txID and decodes it into a
// typed receipt.
func (g *RPCGateway) WaitReceipt(ctx context.Context, txID string) (*Receipt, error) {
	appLog, err := g.client.WaitForApplicationLog(ctx, txID, g.pollInterval)
	if err != nil {
		return nil, err
	}
	return DecodeReceipt(appLog), nil
}
