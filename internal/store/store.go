// Package store persists workflow snapshots and launched-project records so
// a flow can resume at its first non-complete step after a restart.
package store

import (
	"context"
	"errors"

	"github.com/curvelabs/launchpad/internal/workflow"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// WorkflowStore persists and recalls workflow snapshots.
type WorkflowStore interface {
	workflow.Store

	// GetWorkflow returns a snapshot by workflow ID.
	GetWorkflow(ctx context.Context, id string) (workflow.Snapshot, error)

	// ListWorkflows returns snapshots for an owner, newest first.
	ListWorkflows(ctx context.Context, owner string) ([]workflow.Snapshot, error)
}
