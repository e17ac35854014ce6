package txcontrol

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/curvelabs/launchpad/internal/chain"
	"github.com/curvelabs/launchpad/internal/metrics"
	"github.com/curvelabs/launchpad/pkg/logger"
)

// Controller errors.
var (
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrNothingTracked     = errors.New("no submission being tracked")
	ErrSuperseded         = errors.New("receipt superseded by a newer submission")
)

// Controller drives one write operation through its lifecycle:
// Idle -> Submitting -> AwaitingConfirmation -> Confirmed/Reverted, or
// Submitting -> Error when the submission itself fails.
//
// At most one tracked transaction ID is live per controller. A new submission
// invalidates the previous ID for reconciliation, so a delayed receipt from a
// superseded attempt can never be mistaken for the current one.
type Controller struct {
	mu sync.Mutex

	gateway chain.Gateway
	limiter *rate.Limiter
	log     *logger.Logger
	role    Role

	status    Status
	trackedID string
	resultID  string
	receipt   *chain.Receipt
	lastErr   error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLimiter applies a submission rate limiter shared across controllers.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Controller) { c.limiter = limiter }
}

// WithLogger sets the controller logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// New creates a controller for the given role over the gateway.
func New(gateway chain.Gateway, role Role, opts ...Option) *Controller {
	c := &Controller{
		gateway: gateway,
		role:    role,
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewDefault("txcontrol")
	}
	return c
}

// Status returns the current lifecycle status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// TrackedID returns the transaction ID currently awaited, if any.
func (c *Controller) TrackedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trackedID
}

// ResultID returns the transaction ID whose receipt produced the terminal
// state, set only when a receipt matched the tracked ID.
func (c *Controller) ResultID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resultID
}

// Receipt returns the accepted receipt, if the controller reached a mined
// terminal state.
func (c *Controller) Receipt() *chain.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt
}

// Err returns the terminal error for Error and Reverted states.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Role returns the controller's role.
func (c *Controller) Role() Role { return c.role }

// Submit submits a write request and starts tracking its transaction ID.
// It is safe to call again after Error or Reverted, and from
// AwaitingConfirmation to supersede a pending attempt; the previous tracked
// ID is cleared first so its delayed receipt will be ignored.
func (c *Controller) Submit(ctx context.Context, req chain.WriteRequest) (string, error) {
	c.mu.Lock()
	if !c.status.Resubmittable() {
		c.mu.Unlock()
		return "", ErrSubmissionInFlight
	}
	prev := c.trackedID
	c.trackedID = ""
	c.resultID = ""
	c.receipt = nil
	c.lastErr = nil
	c.status = StatusSubmitting
	c.mu.Unlock()

	if prev != "" {
		c.log.WithField("tx_id", prev).Debug("superseding pending submission")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.fail(err)
			return "", err
		}
	}

	txID, err := c.gateway.SubmitWrite(ctx, req)
	if err != nil {
		classified := chain.ClassifyError(err)
		c.fail(classified)
		metrics.TxSubmissionFailed(c.role.String())
		return "", classified
	}

	c.mu.Lock()
	c.trackedID = txID
	c.status = StatusAwaitingConfirmation
	c.mu.Unlock()

	metrics.TxSubmitted(c.role.String())
	c.log.WithField("tx_id", txID).Infof("%s submitted, awaiting confirmation", c.role)
	return txID, nil
}

// HandleReceipt applies an arriving receipt. Stale receipts are dropped
// silently with no state change; a matching receipt moves the controller to
// Confirmed or Reverted and clears the tracked ID.
func (c *Controller) HandleReceipt(receipt *chain.Receipt) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if Reconcile(receipt, c.trackedID) == DecisionIgnore {
		if receipt != nil {
			c.log.WithField("tx_id", receipt.TxID).Debug("ignoring stale receipt")
		}
		return DecisionIgnore
	}

	c.resultID = receipt.TxID
	c.receipt = receipt
	c.trackedID = ""

	if receipt.Success {
		c.status = StatusConfirmed
		c.lastErr = nil
		metrics.TxConfirmed(c.role.String())
	} else {
		c.status = StatusReverted
		c.lastErr = &chain.Failure{Kind: chain.FailureReverted, Reason: receipt.RevertReason}
		metrics.TxReverted(c.role.String())
	}

	c.log.WithField("tx_id", receipt.TxID).Info(ResultMessage(receipt, c.role))
	return DecisionAccept
}

// Await blocks until the tracked transaction's receipt arrives and is
// reconciled. Confirmation waits carry no client-side timeout; the caller
// bounds the wait with ctx. If the submission was superseded while waiting,
// ErrSuperseded is returned and the newer attempt's state is untouched.
func (c *Controller) Await(ctx context.Context) (*chain.Receipt, error) {
	c.mu.Lock()
	txID := c.trackedID
	c.mu.Unlock()
	if txID == "" {
		return nil, ErrNothingTracked
	}

	receipt, err := c.gateway.WaitReceipt(ctx, txID)
	if err != nil {
		return nil, err
	}

	if c.HandleReceipt(receipt) == DecisionIgnore {
		return nil, ErrSuperseded
	}
	if !receipt.Success {
		return receipt, c.Err()
	}
	return receipt, nil
}

// Reset returns the controller to Idle, discarding any tracked or terminal
// state. A receipt for a previously tracked ID will be ignored afterwards.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusIdle
	c.trackedID = ""
	c.resultID = ""
	c.receipt = nil
	c.lastErr = nil
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusError
	c.lastErr = err
}
