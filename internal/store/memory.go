package store

import (
	"context"
	"sort"
	"sync"

	"github.com/curvelabs/launchpad/internal/workflow"
)

// Memory is an in-memory WorkflowStore for tests and single-process runs.
type Memory struct {
	mu        sync.RWMutex
	workflows map[string]workflow.Snapshot
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{workflows: make(map[string]workflow.Snapshot)}
}

// SaveWorkflow stores or replaces a snapshot.
func (m *Memory) SaveWorkflow(ctx context.Context, snap workflow.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[snap.ID] = snap
	return nil
}

// GetWorkflow returns a snapshot by ID.
func (m *Memory) GetWorkflow(ctx context.Context, id string) (workflow.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.workflows[id]
	if !ok {
		return workflow.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// ListWorkflows returns snapshots for an owner, newest first.
func (m *Memory) ListWorkflows(ctx context.Context, owner string) ([]workflow.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []workflow.Snapshot
	for _, snap := range m.workflows {
		if owner == "" || snap.Owner == owner {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

var _ WorkflowStore = (*Memory)(nil)
