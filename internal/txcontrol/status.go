// Package txcontrol drives a single ledger write through its lifecycle and
// reconciles asynchronous confirmations against the tracked submission.
package txcontrol

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle status of a tracked write operation.
type Status int32

const (
	// StatusIdle indicates no submission has been made.
	StatusIdle Status = iota

	// StatusSubmitting indicates the write has been handed to the ledger
	// gateway but no transaction ID is known yet.
	StatusSubmitting

	// StatusAwaitingConfirmation indicates a transaction ID is being tracked
	// and the receipt has not arrived.
	StatusAwaitingConfirmation

	// StatusConfirmed indicates the tracked transaction was mined and
	// executed successfully.
	StatusConfirmed

	// StatusReverted indicates the tracked transaction was mined but
	// execution failed.
	StatusReverted

	// StatusError indicates submission itself failed.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitting:
		return "submitting"
	case StatusAwaitingConfirmation:
		return "awaiting_confirmation"
	case StatusConfirmed:
		return "confirmed"
	case StatusReverted:
		return "reverted"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", s)
	}
}

// Terminal reports whether the status is an end state for the attempt.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusReverted || s == StatusError
}

// Resubmittable reports whether Submit may be called in this status.
// A pending submission can only be superseded, never cancelled, so
// AwaitingConfirmation allows resubmission; Submitting does not.
func (s Status) Resubmittable() bool {
	return s != StatusSubmitting
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseStatus(str)
	return nil
}

// ParseStatus converts a string to Status.
func ParseStatus(s string) Status {
	switch s {
	case "submitting":
		return StatusSubmitting
	case "awaiting_confirmation":
		return StatusAwaitingConfirmation
	case "confirmed":
		return StatusConfirmed
	case "reverted":
		return StatusReverted
	case "error":
		return StatusError
	default:
		return StatusIdle
	}
}

// Role distinguishes approval submissions from value-moving actions. It only
// affects user-facing messaging, never reconciliation.
type Role int32

const (
	RoleAction Role = iota
	RoleApproval
)

// String returns the string representation of the role.
func (r Role) String() string {
	if r == RoleApproval {
		return "approval"
	}
	return "action"
}
