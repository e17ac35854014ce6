// Package launch composes the platform's user flows out of workflow steps:
// provider launch, curve trading, and fee withdrawal. Each flow is a
// resumable multi-step workflow persisted through the workflow store.
package launch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/curvelabs/launchpad/internal/backend"
	"github.com/curvelabs/launchpad/internal/chain"
	"github.com/curvelabs/launchpad/internal/store"
	"github.com/curvelabs/launchpad/internal/txcontrol"
	"github.com/curvelabs/launchpad/internal/workflow"
	"github.com/curvelabs/launchpad/pkg/logger"
)

// Service errors.
var (
	// ErrInvalidRequest marks caller mistakes: missing fields, non-positive
	// amounts, malformed script hashes.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAlreadyRunning is returned when a resume targets a launch whose
	// workflow is still being driven.
	ErrAlreadyRunning = errors.New("launch already running")
)

// Contracts holds the platform contract script hashes.
type Contracts struct {
	ProviderFactory string
	CurveFactory    string
	PaymentToken    string
}

// normalized validates every configured hash and returns its canonical form,
// so a bad address fails service construction instead of a ledger write.
func (c Contracts) normalized() (Contracts, error) {
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"provider factory", &c.ProviderFactory},
		{"curve factory", &c.CurveFactory},
		{"payment token", &c.PaymentToken},
	} {
		if *f.v == "" {
			continue
		}
		h, err := chain.NormalizeScriptHash(*f.v)
		if err != nil {
			return Contracts{}, fmt.Errorf("%s contract: %w", f.name, err)
		}
		*f.v = h
	}
	return c, nil
}

// LaunchRequest describes a provider launch.
type LaunchRequest struct {
	Owner       string
	Name        string
	Symbol      string
	Description string
	ImageKey    string

	// SeedAmount is the payment-token amount approved and spent to seed the
	// bonding curve. Zero skips the approval step entirely.
	SeedAmount *big.Int
}

// TradeRequest describes a buy or sell against a deployed curve.
type TradeRequest struct {
	Owner  string
	Curve  string
	Token  string
	Amount *big.Int

	// Cost is the payment-token budget for a buy. Unused on sells.
	Cost *big.Int
}

// Service drives the launch, trading, and fee flows.
type Service struct {
	gateway   chain.Gateway
	store     store.WorkflowStore
	backend   *backend.Client
	contracts Contracts
	limiter   *rate.Limiter
	log       *logger.Logger

	mu     sync.Mutex
	active map[string]*workflow.Workflow
}

// Config configures the launch service.
type Config struct {
	Gateway   chain.Gateway
	Store     store.WorkflowStore
	Backend   *backend.Client
	Contracts Contracts
	Logger    *logger.Logger

	// SubmitRate caps ledger writes across all flows. Zero means one write
	// per second with a burst of one.
	SubmitRate  rate.Limit
	SubmitBurst int
}

// NewService creates the launch service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("launch")
	}
	if cfg.SubmitRate == 0 {
		cfg.SubmitRate = rate.Every(time.Second)
	}
	if cfg.SubmitBurst == 0 {
		cfg.SubmitBurst = 1
	}

	contracts, err := cfg.Contracts.normalized()
	if err != nil {
		return nil, err
	}

	return &Service{
		gateway:   cfg.Gateway,
		store:     cfg.Store,
		backend:   cfg.Backend,
		contracts: contracts,
		limiter:   rate.NewLimiter(cfg.SubmitRate, cfg.SubmitBurst),
		log:       cfg.Logger,
		active:    make(map[string]*workflow.Workflow),
	}, nil
}

func (s *Service) newController(role txcontrol.Role) *txcontrol.Controller {
	return txcontrol.New(s.gateway, role,
		txcontrol.WithLimiter(s.limiter),
		txcontrol.WithLogger(s.log),
	)
}

func (s *Service) newWorkflow(name, owner string, steps []workflow.Step) (*workflow.Workflow, error) {
	return workflow.New(workflow.Config{
		Name:          name,
		Owner:         owner,
		Gateway:       s.gateway,
		Store:         s.store,
		Logger:        s.log,
		NewController: s.newController,
	}, steps)
}

// StartLaunch builds the launch workflow and runs it in the background.
// Confirmation waits are unbounded, so the run detaches from the caller's
// cancellation; progress is observed through Launch and the store.
func (s *Service) StartLaunch(ctx context.Context, req LaunchRequest) (workflow.Snapshot, error) {
	if req.Owner == "" || req.Name == "" || req.Symbol == "" {
		return workflow.Snapshot{}, fmt.Errorf("%w: owner, name, and symbol are required", ErrInvalidRequest)
	}

	wf, err := s.newWorkflow("launch", req.Owner, s.launchSteps(req.Owner, req.SeedAmount))
	if err != nil {
		return workflow.Snapshot{}, err
	}

	seed := req.SeedAmount
	if seed == nil {
		seed = big.NewInt(0)
	}
	wf.SetResult(paramName, req.Name)
	wf.SetResult(paramSymbol, req.Symbol)
	wf.SetResult(paramDescription, req.Description)
	wf.SetResult(paramImageKey, req.ImageKey)
	wf.SetResult(paramSeedAmount, seed.String())

	s.runAsync(ctx, wf)
	return wf.Snapshot(), nil
}

// ResumeLaunch reloads a halted launch from the store and re-runs it from the
// first non-complete step. Confirmed steps are never re-submitted.
func (s *Service) ResumeLaunch(ctx context.Context, id string) (workflow.Snapshot, error) {
	snap, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return workflow.Snapshot{}, err
	}

	seed := new(big.Int)
	if raw, ok := snap.Results[paramSeedAmount]; ok {
		if _, ok := seed.SetString(raw, 10); !ok {
			return workflow.Snapshot{}, fmt.Errorf("invalid seed amount %q in snapshot", raw)
		}
	}

	wf, err := s.newWorkflow("launch", snap.Owner, s.launchSteps(snap.Owner, seed))
	if err != nil {
		return workflow.Snapshot{}, err
	}
	if err := wf.Restore(snap); err != nil {
		return workflow.Snapshot{}, fmt.Errorf("restore launch %s: %w", id, err)
	}

	// Registration is atomic with the liveness check, so concurrent resumes
	// of the same launch cannot both drive it. An entry that is idle was
	// registered by another caller and is about to run; only a finished
	// leftover may be displaced.
	s.mu.Lock()
	if live, ok := s.active[id]; ok {
		if st := live.Snapshot().Status; st == workflow.StatusRunning || st == workflow.StatusIdle {
			snap := live.Snapshot()
			s.mu.Unlock()
			return snap, fmt.Errorf("launch %s: %w", id, ErrAlreadyRunning)
		}
	}
	s.active[id] = wf
	s.mu.Unlock()

	s.spawn(ctx, wf)
	return wf.Snapshot(), nil
}

// Launch returns the current progress of a launch, preferring the live
// workflow over the persisted snapshot.
func (s *Service) Launch(ctx context.Context, id string) (workflow.Snapshot, error) {
	s.mu.Lock()
	if live, ok := s.active[id]; ok {
		s.mu.Unlock()
		return live.Snapshot(), nil
	}
	s.mu.Unlock()
	return s.store.GetWorkflow(ctx, id)
}

// ListLaunches returns the owner's workflows, newest first.
func (s *Service) ListLaunches(ctx context.Context, owner string) ([]workflow.Snapshot, error) {
	return s.store.ListWorkflows(ctx, owner)
}

// Buy purchases project tokens through the curve, approving the payment
// budget first when the live allowance falls short. Runs to completion.
func (s *Service) Buy(ctx context.Context, req TradeRequest) (workflow.Snapshot, error) {
	if err := validateTrade(&req, true); err != nil {
		return workflow.Snapshot{}, err
	}
	return s.runTrade(ctx, "buy", req.Owner, s.buySteps(req))
}

// Sell sells project tokens back to the curve, approving the token spend
// first when the live allowance falls short. Runs to completion.
func (s *Service) Sell(ctx context.Context, req TradeRequest) (workflow.Snapshot, error) {
	if req.Token == "" {
		return workflow.Snapshot{}, fmt.Errorf("%w: token is required for a sell", ErrInvalidRequest)
	}
	if err := validateTrade(&req, false); err != nil {
		return workflow.Snapshot{}, err
	}
	return s.runTrade(ctx, "sell", req.Owner, s.sellSteps(req))
}

// WithdrawFees withdraws accrued fees from a provider contract. A reverted
// withdrawal halts with a parsed reason and may be retried on the same
// provider.
func (s *Service) WithdrawFees(ctx context.Context, owner, provider string) (workflow.Snapshot, error) {
	if owner == "" || provider == "" {
		return workflow.Snapshot{}, fmt.Errorf("%w: owner and provider are required", ErrInvalidRequest)
	}
	normalized, err := chain.NormalizeScriptHash(provider)
	if err != nil {
		return workflow.Snapshot{}, fmt.Errorf("%w: provider: %v", ErrInvalidRequest, err)
	}
	return s.runTrade(ctx, "withdraw-fees", owner, s.withdrawSteps(owner, normalized))
}

func (s *Service) runTrade(ctx context.Context, name, owner string, steps []workflow.Step) (workflow.Snapshot, error) {
	wf, err := s.newWorkflow(name, owner, steps)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	runErr := wf.Run(ctx)
	return wf.Snapshot(), runErr
}

func (s *Service) runAsync(ctx context.Context, wf *workflow.Workflow) {
	s.mu.Lock()
	s.active[wf.ID()] = wf
	s.mu.Unlock()
	s.spawn(ctx, wf)
}

func (s *Service) spawn(ctx context.Context, wf *workflow.Workflow) {
	// Detach from the caller: a pending submission cannot be cancelled once
	// on the ledger, only superseded.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		if err := wf.Run(runCtx); err != nil {
			s.log.WithError(err).Warnf("launch %s halted", wf.ID())
		}
		s.mu.Lock()
		// A newer registration for the same id must not be displaced.
		if s.active[wf.ID()] == wf {
			delete(s.active, wf.ID())
		}
		s.mu.Unlock()
	}()
}

// registerMetadata records the launched project with the backend service.
// Failure here never rolls back the confirmed ledger steps; the workflow
// halts at this step for a later resume.
func (s *Service) registerMetadata(ctx context.Context, wf *workflow.Workflow) error {
	if s.backend == nil {
		return nil
	}

	name, _ := wf.Result(paramName)
	symbol, _ := wf.Result(paramSymbol)
	description, _ := wf.Result(paramDescription)
	imageKey, _ := wf.Result(paramImageKey)

	addresses := make(map[string]string)
	for key, field := range map[string]string{
		ResultProviderAddress: "provider",
		ResultCurveAddress:    "curve",
		ResultTokenAddress:    "token",
	} {
		if v, ok := wf.Result(key); ok {
			addresses[field] = v
		}
	}

	record, err := s.backend.CreateRecord(ctx, backend.Record{
		Name:        name,
		Symbol:      symbol,
		Description: description,
		ImageKey:    imageKey,
		Addresses:   addresses,
	})
	if err != nil {
		return fmt.Errorf("register metadata: %w", err)
	}
	wf.SetResult(ResultRecordID, record.ID)
	return nil
}

// validateTrade checks the request and normalizes its script hashes in
// place, so a malformed address is rejected before anything is submitted.
func validateTrade(req *TradeRequest, buy bool) error {
	if req.Owner == "" || req.Curve == "" {
		return fmt.Errorf("%w: owner and curve are required", ErrInvalidRequest)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if buy && (req.Cost == nil || req.Cost.Sign() < 0) {
		return fmt.Errorf("%w: cost budget is required for a buy", ErrInvalidRequest)
	}

	curve, err := chain.NormalizeScriptHash(req.Curve)
	if err != nil {
		return fmt.Errorf("%w: curve: %v", ErrInvalidRequest, err)
	}
	req.Curve = curve

	if req.Token != "" {
		token, err := chain.NormalizeScriptHash(req.Token)
		if err != nil {
			return fmt.Errorf("%w: token: %v", ErrInvalidRequest, err)
		}
		req.Token = token
	}
	return nil
}
