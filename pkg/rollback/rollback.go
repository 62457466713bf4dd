package rollback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftgate/shiftgate/pkg/log"
	"github.com/shiftgate/shiftgate/pkg/probe"
	"github.com/shiftgate/shiftgate/pkg/target"
	"github.com/shiftgate/shiftgate/pkg/types"
)

// Outcome is the result of a rollback execution
type Outcome string

const (
	OutcomeReverted     Outcome = "reverted"
	OutcomeRevertFailed Outcome = "revert-failed"
)

// ErrRevertFailed indicates the coordinator could not restore the stable
// revision. This is the doubly-bad outcome: the system cannot guarantee
// traffic is on a known-good revision, so the condition must surface to
// a human rather than be silently retried.
var ErrRevertFailed = errors.New("failed to restore stable revision")

// Coordinator reverts all traffic to the stable revision and confirms
// the service is back up. Invoking it is idempotent: re-shifting traffic
// to a split the platform already serves is a no-op at the platform
// level by construction.
type Coordinator struct {
	client     target.Client
	newChecker func(url string) probe.Checker
	attempts   int
	backoff    time.Duration
	logger     zerolog.Logger
}

// New creates a coordinator with default confirmation settings
func New(client target.Client) *Coordinator {
	return &Coordinator{
		client: client,
		newChecker: func(url string) probe.Checker {
			return probe.NewHTTPChecker(url)
		},
		attempts: 10,
		backoff:  3 * time.Second,
		logger:   log.WithComponent("rollback"),
	}
}

// WithConfirmation sets the bounded-retry confirmation parameters
func (c *Coordinator) WithConfirmation(attempts int, backoff time.Duration) *Coordinator {
	c.attempts = attempts
	c.backoff = backoff
	return c
}

// WithCheckerFactory overrides how confirmation probers are built
func (c *Coordinator) WithCheckerFactory(factory func(url string) probe.Checker) *Coordinator {
	c.newChecker = factory
	return c
}

// Rollback shifts 100% of traffic to stableRevision and confirms health
// against the aggregate endpoint. The confirmation is a binary "is it
// back up" check with bounded retries, deliberately distinct from the
// performance monitor's statistical window: fast and decisive.
func (c *Coordinator) Rollback(ctx context.Context, stableRevision string) (Outcome, error) {
	c.logger.Warn().Str("stable_revision", stableRevision).Msg("reverting all traffic to stable revision")

	split := types.TrafficSplit{stableRevision: 100}
	if err := c.client.ShiftTraffic(ctx, split); err != nil {
		return OutcomeRevertFailed, fmt.Errorf("%w: traffic shift: %v", ErrRevertFailed, err)
	}

	endpoint, err := c.client.ServiceEndpoint(ctx, nil)
	if err != nil {
		return OutcomeRevertFailed, fmt.Errorf("%w: endpoint lookup: %v", ErrRevertFailed, err)
	}

	sample, err := probe.Await(ctx, c.newChecker(endpoint), c.attempts, c.backoff)
	if err != nil {
		return OutcomeRevertFailed, fmt.Errorf("%w: health confirmation: %v (last: %s)", ErrRevertFailed, err, sample.Message)
	}

	c.logger.Info().Str("stable_revision", stableRevision).Msg("traffic reverted and confirmed healthy")
	return OutcomeReverted, nil
}
