package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curvelabs/launchpad/internal/allowance"
	"github.com/curvelabs/launchpad/internal/chain"
	"github.com/curvelabs/launchpad/internal/metrics"
	"github.com/curvelabs/launchpad/internal/txcontrol"
	"github.com/curvelabs/launchpad/pkg/logger"
)

// Status is the workflow-level status, mirroring the controller's terminal
// states at workflow granularity.
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusComplete
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", s)
	}
}

// ErrApprovalShortfall is returned when a confirmed approval still leaves the
// allowance below the requirement, e.g. because the requirement changed while
// the approval was pending.
var ErrApprovalShortfall = errors.New("allowance still insufficient after approval")

// StepState is the externally visible state of one step.
type StepState struct {
	Name   string     `json:"name"`
	Kind   StepKind   `json:"kind"`
	Status StepStatus `json:"status"`
	TxID   string     `json:"tx_id,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Snapshot is a copyable view of workflow progress, also the persistence
// record for resumable flows.
type Snapshot struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Owner        string            `json:"owner"`
	Status       Status            `json:"status"`
	CurrentIndex int               `json:"current_index"`
	Steps        []StepState       `json:"steps"`
	Results      map[string]string `json:"results"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Store persists workflow snapshots so a flow survives process restart and
// resumes at the first non-complete step.
type Store interface {
	SaveWorkflow(ctx context.Context, snap Snapshot) error
}

// Workflow drives an ordered step list. Steps execute strictly in declared
// order; a step is entered only once all prior steps are complete. All state
// is mutated only by the single driving goroutine; snapshots tolerate being
// stale by definition.
type Workflow struct {
	id    string
	name  string
	owner string

	gateway chain.Gateway
	gate    *allowance.Gate
	store   Store
	log     *logger.Logger

	newController func(role txcontrol.Role) *txcontrol.Controller

	mu      sync.Mutex
	steps   []Step
	states  []StepState
	status  Status
	current int
	results map[string]string
	lastErr error
}

// Config configures a workflow.
type Config struct {
	Name    string
	Owner   string
	Gateway chain.Gateway
	Store   Store
	Logger  *logger.Logger

	// NewController overrides controller construction, mainly so callers
	// can attach a shared rate limiter.
	NewController func(role txcontrol.Role) *txcontrol.Controller
}

// New creates a workflow over the declared steps.
func New(cfg Config, steps []Step) (*Workflow, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("at least one step required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("workflow")
	}

	wf := &Workflow{
		id:      uuid.NewString(),
		name:    cfg.Name,
		owner:   cfg.Owner,
		gateway: cfg.Gateway,
		gate:    allowance.NewGate(cfg.Gateway),
		store:   cfg.Store,
		log:     cfg.Logger.WithField("workflow", cfg.Name),
		steps:   steps,
		states:  make([]StepState, len(steps)),
		results: make(map[string]string),
	}
	for i, step := range steps {
		wf.states[i] = StepState{Name: step.Name, Kind: step.Kind, Status: StepPending}
	}

	wf.newController = cfg.NewController
	if wf.newController == nil {
		wf.newController = func(role txcontrol.Role) *txcontrol.Controller {
			return txcontrol.New(cfg.Gateway, role, txcontrol.WithLogger(wf.log))
		}
	}
	return wf, nil
}

// Restore rebuilds progress from a persisted snapshot so Run resumes at the
// first non-complete step. Step names and order must match the declaration.
func (wf *Workflow) Restore(snap Snapshot) error {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	if len(snap.Steps) != len(wf.steps) {
		return fmt.Errorf("snapshot has %d steps, workflow declares %d", len(snap.Steps), len(wf.steps))
	}
	for i, st := range snap.Steps {
		if st.Name != wf.steps[i].Name {
			return fmt.Errorf("snapshot step %d is %q, declared %q", i, st.Name, wf.steps[i].Name)
		}
	}

	if snap.ID != "" {
		wf.id = snap.ID
	}
	for i, st := range snap.Steps {
		// A previously running or failed step re-enters as pending; only
		// confirmed effects are preserved.
		if st.Status != StepComplete {
			st.Status = StepPending
			st.Error = ""
		}
		wf.states[i] = st
	}
	for k, v := range snap.Results {
		wf.results[k] = v
	}
	wf.status = StatusIdle
	wf.lastErr = nil
	return nil
}

// ID returns the workflow identifier.
func (wf *Workflow) ID() string { return wf.id }

// Owner returns the address driving the workflow.
func (wf *Workflow) Owner() string { return wf.owner }

// SetResult stores a durable result. Callers use it to seed inputs the step
// builders consume, so a restored workflow can rebuild its writes without the
// original request in hand.
func (wf *Workflow) SetResult(key, value string) { wf.setResult(key, value) }

// Result returns a durable result extracted by an earlier step.
func (wf *Workflow) Result(key string) (string, bool) {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	v, ok := wf.results[key]
	return v, ok
}

// Err returns the error that halted the workflow, if any.
func (wf *Workflow) Err() error {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	return wf.lastErr
}

// Snapshot returns a copy of the workflow's current progress.
func (wf *Workflow) Snapshot() Snapshot {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	return wf.snapshotLocked()
}

func (wf *Workflow) snapshotLocked() Snapshot {
	steps := make([]StepState, len(wf.states))
	copy(steps, wf.states)
	results := make(map[string]string, len(wf.results))
	for k, v := range wf.results {
		results[k] = v
	}
	return Snapshot{
		ID:           wf.id,
		Name:         wf.name,
		Owner:        wf.owner,
		Status:       wf.status,
		CurrentIndex: wf.current,
		Steps:        steps,
		Results:      results,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Run executes the workflow from the first non-complete step. On a step
// failure it halts at that index with the error surfaced; completed steps
// and their extracted results remain valid, so a later Run retries only the
// failed step without repeating prior side effects.
func (wf *Workflow) Run(ctx context.Context) error {
	wf.mu.Lock()
	if wf.status == StatusRunning {
		wf.mu.Unlock()
		return fmt.Errorf("workflow already running")
	}
	wf.status = StatusRunning
	wf.lastErr = nil
	start := wf.firstPendingLocked()
	wf.current = start
	wf.mu.Unlock()

	wf.persist(ctx)

	for i := start; i < len(wf.steps); i++ {
		wf.mu.Lock()
		if wf.states[i].Status == StepComplete {
			wf.mu.Unlock()
			continue
		}
		wf.current = i
		wf.states[i].Status = StepRunning
		wf.states[i].Error = ""
		step := wf.steps[i]
		wf.mu.Unlock()
		wf.persist(ctx)

		err := wf.runStep(ctx, i, step)

		wf.mu.Lock()
		if err != nil {
			wf.states[i].Status = StepFailed
			wf.states[i].Error = err.Error()
			wf.status = StatusFailed
			wf.lastErr = err
			wf.mu.Unlock()
			metrics.WorkflowStep(step.Kind.String(), "failed")
			wf.persist(ctx)
			wf.log.WithError(err).Warnf("step %q failed", step.Name)
			return err
		}
		wf.states[i].Status = StepComplete
		wf.mu.Unlock()
		metrics.WorkflowStep(step.Kind.String(), "complete")
		wf.persist(ctx)
		wf.log.Infof("step %q complete", step.Name)
	}

	wf.mu.Lock()
	wf.status = StatusComplete
	wf.current = len(wf.steps)
	wf.mu.Unlock()
	wf.persist(ctx)
	return nil
}

// Reset discards all progress, returning every step to pending. Extracted
// results are cleared; confirmed ledger effects are, of course, untouched.
func (wf *Workflow) Reset() {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	for i := range wf.states {
		wf.states[i].Status = StepPending
		wf.states[i].Error = ""
		wf.states[i].TxID = ""
	}
	wf.status = StatusIdle
	wf.current = 0
	wf.lastErr = nil
	wf.results = make(map[string]string)
}

func (wf *Workflow) firstPendingLocked() int {
	for i := range wf.states {
		if wf.states[i].Status != StepComplete {
			return i
		}
	}
	return len(wf.states)
}

func (wf *Workflow) runStep(ctx context.Context, index int, step Step) error {
	switch step.Kind {
	case KindConditionalApproval:
		return wf.runApproval(ctx, index, step)
	case KindAction:
		return wf.runAction(ctx, index, step)
	case KindExternalCall:
		return step.External(ctx, wf)
	default:
		return fmt.Errorf("unknown step kind %v", step.Kind)
	}
}

// runApproval re-evaluates the allowance gate on every entry. If the live
// allowance falls short it drives an approval cycle, then re-checks before
// declaring the step complete: the approved amount may still fall short of a
// requirement that changed while the approval was pending.
func (wf *Workflow) runApproval(ctx context.Context, index int, step Step) error {
	spec := step.Approval

	res, err := wf.gate.Check(ctx, wf.owner, spec.Spender, spec.Token, spec.Required)
	if err != nil {
		return fmt.Errorf("allowance check: %w", err)
	}
	if res.Sufficient {
		return nil
	}

	controller := wf.newController(txcontrol.RoleApproval)
	txID, err := controller.Submit(ctx, spec.Build(wf))
	if err != nil {
		return err
	}
	wf.setStepTx(index, txID)

	if _, err := controller.Await(ctx); err != nil {
		return err
	}

	res, err = wf.gate.Check(ctx, wf.owner, spec.Spender, spec.Token, spec.Required)
	if err != nil {
		return fmt.Errorf("allowance re-check: %w", err)
	}
	if !res.Sufficient {
		return fmt.Errorf("%w: have %s, need %s", ErrApprovalShortfall, res.CurrentAllowance, spec.Required)
	}
	return nil
}

func (wf *Workflow) runAction(ctx context.Context, index int, step Step) error {
	req, err := step.Action.Build(wf)
	if err != nil {
		return fmt.Errorf("build write request: %w", err)
	}

	controller := wf.newController(txcontrol.RoleAction)
	txID, err := controller.Submit(ctx, req)
	if err != nil {
		return err
	}
	wf.setStepTx(index, txID)

	receipt, err := controller.Await(ctx)
	if err != nil {
		return err
	}

	if step.Action.Extract != nil {
		step.Action.Extract(receipt, wf.setResult)
	}
	return nil
}

func (wf *Workflow) setResult(key, value string) {
	if value == "" {
		return
	}
	wf.mu.Lock()
	defer wf.mu.Unlock()
	wf.results[key] = value
}

func (wf *Workflow) setStepTx(index int, txID string) {
	wf.mu.Lock()
	wf.states[index].TxID = txID
	wf.mu.Unlock()
}

func (wf *Workflow) persist(ctx context.Context) {
	if wf.store == nil {
		return
	}
	snap := wf.Snapshot()
	if err := wf.store.SaveWorkflow(ctx, snap); err != nil {
		// Persistence is best-effort; the in-memory state stays canonical.
		wf.log.WithError(err).Warn("persist workflow snapshot")
	}
}
