package chain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joeqian10/neo3-gogogo/helper"
)

// =============================================================================
// RPC Wire Types
// =============================================================================

// RPCRequest is a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ContractParam is a typed contract invocation parameter.
type ContractParam struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Param constructors for the common cases.
func StringParam(v string) ContractParam  { return ContractParam{Type: "String", Value: v} }
func IntegerParam(v string) ContractParam { return ContractParam{Type: "Integer", Value: v} }
func BoolParam(v bool) ContractParam      { return ContractParam{Type: "Boolean", Value: v} }
func Hash160Param(v string) ContractParam {
	return ContractParam{Type: "Hash160", Value: strings.TrimPrefix(v, "0x")}
}

// Signer identifies a transaction signer and its witness scope.
type Signer struct {
	Account string `json:"account"`
	Scopes  string `json:"scopes"`
}

// InvokeResult is the result of an invokefunction/invokescript call.
type InvokeResult struct {
	Script      string      `json:"script"`
	State       string      `json:"state"` // HALT or FAULT
	GasConsumed string      `json:"gasconsumed"`
	Exception   string      `json:"exception,omitempty"`
	Stack       []StackItem `json:"stack"`
	Tx          string      `json:"tx,omitempty"`
}

// StackItem is a VM stack item with a lazily-decoded value.
type StackItem struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ApplicationLog is the execution record for a mined transaction.
type ApplicationLog struct {
	TxID       string      `json:"txid"`
	Executions []Execution `json:"executions"`
}

// Execution is one VM execution within an application log.
type Execution struct {
	Trigger       string         `json:"trigger"`
	VMState       string         `json:"vmstate"` // HALT or FAULT
	Exception     string         `json:"exception,omitempty"`
	GasConsumed   string         `json:"gasconsumed"`
	Stack         []StackItem    `json:"stack"`
	Notifications []Notification `json:"notifications"`
}

// Notification is a contract event emitted during execution.
type Notification struct {
	Contract  string    `json:"contract"`
	EventName string    `json:"eventname"`
	State     StackItem `json:"state"`
}

// Block is a ledger block header subset.
type Block struct {
	Hash  string `json:"hash"`
	Index uint32 `json:"index"`
	Time  int64  `json:"time"`
}

// =============================================================================
// Orchestration-Facing Types
// =============================================================================

// WriteRequest describes a state-changing contract call.
type WriteRequest struct {
	Contract string
	Method   string
	Params   []ContractParam
	Signer   string
}

// Receipt is the typed, decoded outcome of a mined transaction. The
// orchestration core only ever sees this form, never raw log bytes.
type Receipt struct {
	TxID         string
	Success      bool
	GasConsumed  string
	RevertReason string

	// Addresses recovered from typed event decoding, when the
	// transaction emitted them.
	DeployedAddress string
	CurveAddress    string
	TokenAddress    string
}

// NormalizeScriptHash validates a contract script hash and returns its
// canonical 0x-prefixed form.
func NormalizeScriptHash(s string) (string, error) {
	h, err := helper.UInt160FromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid script hash %q: %w", s, err)
	}
	return "0x" + strings.TrimPrefix(h.String(), "0x"), nil
}
