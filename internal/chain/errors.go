package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies a ledger-write failure for the orchestration core.
type FailureKind int

const (
	// FailureUnknown indicates an unclassified failure.
	FailureUnknown FailureKind = iota

	// FailureUserRejected indicates the signer declined the transaction.
	// Terminal; no balance or allowance change is assumed.
	FailureUserRejected

	// FailureInsufficient indicates insufficient balance, allowance, or gas.
	FailureInsufficient

	// FailureReverted indicates the ledger accepted the transaction but
	// execution faulted.
	FailureReverted

	// FailureTransient indicates a timeout or node-side error eligible for
	// retry.
	FailureTransient
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureUserRejected:
		return "user_rejected"
	case FailureInsufficient:
		return "insufficient_resources"
	case FailureReverted:
		return "contract_reverted"
	case FailureTransient:
		return "transient_network"
	default:
		return "unknown"
	}
}

// Failure is a classified ledger failure.
type Failure struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Reason != "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return f.Kind.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}

// ClassifyError maps a raw submission error into the failure taxonomy.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rejected") || strings.Contains(msg, "denied") || strings.Contains(msg, "cancelled by user"):
		return &Failure{Kind: FailureUserRejected, Err: err}
	case strings.Contains(msg, "insufficient"):
		return &Failure{Kind: FailureInsufficient, Err: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "too many requests"):
		return &Failure{Kind: FailureTransient, Err: err}
	default:
		return &Failure{Kind: FailureUnknown, Err: err}
	}
}

// ParseRevertReason extracts a human-readable reason from a VM exception
// string. Node exceptions wrap the contract message in noise like
// "An unhandled exception was thrown. curve: slippage exceeded".
func ParseRevertReason(exception string) string {
	reason := strings.TrimSpace(exception)
	if reason == "" {
		return "execution reverted"
	}

	for _, prefix := range []string{
		"An unhandled exception was thrown.",
		"ASSERT is executed with false result.",
	} {
		if rest := strings.TrimSpace(strings.TrimPrefix(reason, prefix)); rest != "" && rest != reason {
			return rest
		}
	}
	return reason
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown transaction") || strings.Contains(msg, "not found")
}

func unmarshalInvokeResult(raw json.RawMessage, out *InvokeResult) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal invoke result: %w", err)
	}
	return nil
}
