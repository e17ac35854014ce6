// Package workflow sequences ordered, possibly-conditional ledger steps:
// allowance-gated approvals, tracked write actions, and external calls.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/curvelabs/launchpad/internal/chain"
)

// StepKind tags the three step flavours a workflow can sequence.
type StepKind int32

const (
	// KindConditionalApproval checks the allowance gate and submits an
	// approval transaction only when the live allowance falls short.
	KindConditionalApproval StepKind = iota

	// KindAction submits a tracked, value-moving ledger write.
	KindAction

	// KindExternalCall invokes a non-ledger collaborator. Failures are
	// reported but never roll back confirmed ledger steps.
	KindExternalCall
)

// String returns the string representation of the step kind.
func (k StepKind) String() string {
	switch k {
	case KindConditionalApproval:
		return "conditional_approval"
	case KindAction:
		return "action"
	case KindExternalCall:
		return "external_call"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// StepStatus is the lifecycle status of one workflow step.
type StepStatus int32

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
)

// String returns the string representation of the step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepComplete:
		return "complete"
	case StepFailed:
		return "failed"
	default:
		return fmt.Sprintf("step_status(%d)", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "running":
		*s = StepRunning
	case "complete":
		*s = StepComplete
	case "failed":
		*s = StepFailed
	default:
		*s = StepPending
	}
	return nil
}

// ApprovalSpec declares a conditional approval step. The requirement is
// re-evaluated every time the step is entered, never assumed from a prior
// run: external state may have changed since the workflow was built.
type ApprovalSpec struct {
	Token    string
	Spender  string
	Required *big.Int

	// Build constructs the approval write submitted when the gate reports
	// an insufficient allowance.
	Build func(wf *Workflow) chain.WriteRequest
}

// ActionSpec declares a tracked ledger write step.
type ActionSpec struct {
	// Build constructs the write request. It may consume durable results
	// extracted by earlier steps.
	Build func(wf *Workflow) (chain.WriteRequest, error)

	// Extract pulls durable results (e.g. a deployed contract address) out
	// of the confirmed receipt and stores them on the workflow for later
	// steps. Optional.
	Extract func(receipt *chain.Receipt, set func(key, value string))
}

// ExternalFunc is a non-ledger side effect, such as registering metadata
// with the backend service.
type ExternalFunc func(ctx context.Context, wf *Workflow) error

// Step is one declared workflow step. Exactly one of Approval, Action, or
// External is set, matching Kind.
type Step struct {
	Name     string
	Kind     StepKind
	Approval *ApprovalSpec
	Action   *ActionSpec
	External ExternalFunc
}

// ApprovalStep declares a conditional approval step.
func ApprovalStep(name string, spec ApprovalSpec) Step {
	return Step{Name: name, Kind: KindConditionalApproval, Approval: &spec}
}

// ActionStep declares a tracked write step.
func ActionStep(name string, spec ActionSpec) Step {
	return Step{Name: name, Kind: KindAction, Action: &spec}
}

// ExternalStep declares a non-ledger step.
func ExternalStep(name string, fn ExternalFunc) Step {
	return Step{Name: name, Kind: KindExternalCall, External: fn}
}
