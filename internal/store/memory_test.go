package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/curvelabs/launchpad/internal/workflow"
)

func snap(id, owner string, at time.Time) workflow.Snapshot {
	return workflow.Snapshot{
		ID:        id,
		Owner:     owner,
		Name:      "launch",
		Status:    workflow.StatusRunning,
		UpdatedAt: at,
	}
}

func TestMemory_SaveGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SaveWorkflow(ctx, snap("wf-1", "0xowner", time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := m.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Owner != "0xowner" {
		t.Fatalf("unexpected snapshot %+v", got)
	}

	if _, err := m.GetWorkflow(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_ListNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()

	m.SaveWorkflow(ctx, snap("wf-old", "0xowner", base.Add(-time.Hour)))
	m.SaveWorkflow(ctx, snap("wf-new", "0xowner", base))
	m.SaveWorkflow(ctx, snap("wf-other", "0xsomeone", base))

	list, err := m.ListWorkflows(ctx, "0xowner")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "wf-new" {
		t.Fatalf("unexpected ordering %+v", list)
	}
}
