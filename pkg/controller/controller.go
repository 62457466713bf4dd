package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftgate/shiftgate/pkg/events"
	"github.com/shiftgate/shiftgate/pkg/log"
	"github.com/shiftgate/shiftgate/pkg/metrics"
	"github.com/shiftgate/shiftgate/pkg/monitor"
	"github.com/shiftgate/shiftgate/pkg/plan"
	"github.com/shiftgate/shiftgate/pkg/probe"
	"github.com/shiftgate/shiftgate/pkg/record"
	"github.com/shiftgate/shiftgate/pkg/rollback"
	"github.com/shiftgate/shiftgate/pkg/target"
	"github.com/shiftgate/shiftgate/pkg/types"
)

// ErrHealthGateExhausted indicates the candidate never answered a single
// healthy probe before traffic was considered for it
var ErrHealthGateExhausted = errors.New("health gate exhausted")

// Monitor judges an endpoint over a sampling window
type Monitor interface {
	Run(ctx context.Context, url string, window, interval time.Duration, th types.Thresholds) (*types.Verdict, error)
}

// Rollbacker reverts traffic to the stable revision
type Rollbacker interface {
	Rollback(ctx context.Context, stableRevision string) (rollback.Outcome, error)
}

// Request describes one rollout to execute
type Request struct {
	ID                string
	Service           string
	Environment       string
	CandidateRevision string
	Metadata          target.Metadata
}

// Controller executes a single rollout attempt as an explicit state
// machine. One attempt is owned by exactly one controller running in one
// goroutine; there is no concurrent mutation path to the attempt value.
type Controller struct {
	client     target.Client
	store      record.Store
	cfg        *types.RolloutConfig
	monitor    Monitor
	rollbacker Rollbacker
	broker     *events.Broker
	newChecker func(url string) probe.Checker
	logger     zerolog.Logger
}

// New creates a controller for one rollout configuration
func New(client target.Client, store record.Store, cfg *types.RolloutConfig) *Controller {
	newChecker := checkerFactory(cfg.Probe)
	return &Controller{
		client:     client,
		store:      store,
		cfg:        cfg,
		monitor:    monitor.New().WithCheckerFactory(newChecker),
		rollbacker: rollback.New(client).WithCheckerFactory(newChecker),
		newChecker: newChecker,
		logger:     log.WithComponent("controller"),
	}
}

// checkerFactory builds probers of the configured kind. TCP targets
// services whose endpoint is a bare host:port with no HTTP surface to
// probe.
func checkerFactory(kind probe.Kind) func(url string) probe.Checker {
	if kind == probe.KindTCP {
		return func(address string) probe.Checker {
			return probe.NewTCPChecker(address)
		}
	}
	return func(url string) probe.Checker {
		return probe.NewHTTPChecker(url)
	}
}

// WithMonitor overrides the performance monitor
func (c *Controller) WithMonitor(m Monitor) *Controller {
	c.monitor = m
	return c
}

// WithRollbacker overrides the rollback coordinator
func (c *Controller) WithRollbacker(r Rollbacker) *Controller {
	c.rollbacker = r
	return c
}

// WithBroker attaches an event broker for lifecycle events
func (c *Controller) WithBroker(b *events.Broker) *Controller {
	c.broker = b
	return c
}

// WithCheckerFactory overrides how health-gate and finalize probers are
// built
func (c *Controller) WithCheckerFactory(factory func(url string) probe.Checker) *Controller {
	c.newChecker = factory
	return c
}

// run carries the mutable state of one attempt execution
type run struct {
	attempt *types.DeploymentAttempt
	handle  *target.RevisionHandle

	// aggregateURL is resolved once before the first traffic shift
	aggregateURL string

	// trafficShifted becomes true the moment a shift toward the
	// candidate is attempted. It is the single gate deciding whether a
	// failure routes through rollback: before it, there is nothing live
	// to revert.
	trafficShifted bool
}

// Run executes the rollout to a terminal status. The returned attempt
// always carries the terminal state; the error, when non-nil, is the
// cause that ended the attempt short of success.
func (c *Controller) Run(ctx context.Context, req Request) (*types.DeploymentAttempt, error) {
	attempt, err := c.newAttempt(ctx, req)
	r := &run{attempt: attempt}
	if err != nil {
		c.finish(r, err, metrics.NewTimer())
		return attempt, err
	}

	alog := c.logger.With().Str("attempt_id", attempt.ID).Logger()

	c.persist(attempt)
	c.publish(attempt, events.EventRolloutStarted, fmt.Sprintf("%s rollout of %s started", attempt.Strategy, attempt.CandidateRevision))
	alog.Info().
		Str("service", attempt.Service).
		Str("strategy", string(attempt.Strategy)).
		Str("candidate", attempt.CandidateRevision).
		Str("stable", attempt.StableRevision).
		Msg("rollout started")

	timer := metrics.NewTimer()
	err = c.execute(ctx, r, alog)
	c.finish(r, err, timer)
	return attempt, err
}

// execute drives the state machine. Any returned error has already been
// translated into a terminal status on the attempt by the failure
// helpers; finish only persists and reports.
func (c *Controller) execute(ctx context.Context, r *run, alog zerolog.Logger) error {
	attempt := r.attempt

	if attempt.Strategy == types.StrategyRecreate {
		return c.executeRecreate(ctx, r, alog)
	}

	// Created → CandidatePublished
	handle, err := c.client.PublishCandidate(ctx, attempt.CandidateRevision, target.Metadata{
		Environment: attempt.Environment,
	})
	if err != nil {
		return c.fail(r, fmt.Errorf("publish candidate: %w", err))
	}
	r.handle = handle
	c.publish(attempt, events.EventCandidatePublished, "candidate published at zero traffic")
	alog.Info().Str("pinned_url", handle.URL).Msg("candidate published")

	// CandidatePublished → HealthGatePassed
	if c.cfg.RequiresIsolatedHealthGate {
		if err := c.healthGate(ctx, r, alog); err != nil {
			metrics.HealthGateFailures.Inc()
			return c.fail(r, err)
		}
		c.publish(attempt, events.EventHealthGatePassed, "candidate passed isolated health gate")
	}

	// HealthGatePassed → StageActive(0): resolve the aggregate endpoint
	// the stages will be judged on
	aggregateURL, err := c.client.ServiceEndpoint(ctx, nil)
	if err != nil {
		return c.fail(r, fmt.Errorf("endpoint lookup: %w", err))
	}
	r.aggregateURL = aggregateURL

	for i := range attempt.Stages {
		if err := c.runStage(ctx, r, i, alog); err != nil {
			return err
		}
	}

	// Finalizing: a short burst of direct checks before declaring
	// success. A late-breaking regression is still possible even after
	// the last monitoring window closed.
	if err := c.finalize(ctx, r, alog); err != nil {
		return err
	}

	// Succeeded: ownership of "stable" transfers to the candidate only
	// here, on a fully successful terminal state
	attempt.Status = types.AttemptSucceeded
	attempt.StableRevision = attempt.CandidateRevision
	return nil
}

// newAttempt builds the attempt record, reading the current traffic
// split to establish the stable revision. Failures here are pre-traffic
// by definition and terminate as Failed.
func (c *Controller) newAttempt(ctx context.Context, req Request) (*types.DeploymentAttempt, error) {
	attempt := &types.DeploymentAttempt{
		ID:                req.ID,
		Service:           req.Service,
		Environment:       req.Environment,
		Strategy:          c.cfg.Strategy,
		CandidateRevision: req.CandidateRevision,
		Status:            types.AttemptInProgress,
		Thresholds:        c.cfg.Thresholds,
		CreatedAt:         time.Now().UTC(),
	}
	if attempt.ID == "" {
		attempt.ID = AttemptID(req.Environment, req.CandidateRevision)
	}

	split, err := c.client.CurrentTraffic(ctx)
	if err != nil {
		attempt.Status = types.AttemptFailed
		attempt.FailureReason = err.Error()
		return attempt, fmt.Errorf("query current traffic: %w", err)
	}
	attempt.StableRevision = stableRevision(split)

	percents, err := plan.Stages(c.cfg.Strategy, c.cfg.InitialPercent, c.cfg.IncrementPercent)
	if err != nil {
		attempt.Status = types.AttemptFailed
		attempt.FailureReason = err.Error()
		return attempt, err
	}

	// With no revision serving traffic there is nothing to split
	// against: gradual stages collapse to a direct cutover, and any
	// failure terminates as Failed since rollback has no destination.
	if attempt.FirstDeployment() && len(percents) > 0 {
		percents = []int{100}
	}
	attempt.Stages = plan.AsStages(percents)

	return attempt, nil
}

// healthGate probes the candidate's isolated endpoint with bounded
// retries until one success
func (c *Controller) healthGate(ctx context.Context, r *run, alog zerolog.Logger) error {
	url, err := c.client.ServiceEndpoint(ctx, r.handle)
	if err != nil {
		return fmt.Errorf("pinned endpoint lookup: %w", err)
	}

	sample, err := probe.Await(ctx, c.newChecker(url), c.cfg.HealthGateAttempts, c.cfg.HealthGateBackoff)
	if err != nil {
		if errors.Is(err, probe.ErrExhausted) {
			return fmt.Errorf("%w after %d attempts: %s", ErrHealthGateExhausted, c.cfg.HealthGateAttempts, sample.Message)
		}
		// Abort before any traffic shift terminates as Failed, no
		// rollback: nothing is live yet
		return fmt.Errorf("health gate: %w", err)
	}
	alog.Info().Str("url", url).Msg("health gate passed")
	return nil
}

// runStage shifts traffic for one stage, monitors it, and advances or
// routes to rollback
func (c *Controller) runStage(ctx context.Context, r *run, index int, alog zerolog.Logger) error {
	attempt := r.attempt
	stage := attempt.Stages[index]

	attempt.CurrentStageIndex = index
	stage.Status = types.StageActive
	stage.StartedAt = time.Now().UTC()
	stageTimer := metrics.NewTimer()

	c.publish(attempt, events.EventStageStarted, fmt.Sprintf("stage %d: %d%% to candidate", index, stage.TargetPercent))
	alog.Info().Int("stage", index).Int("target_percent", stage.TargetPercent).Msg("stage started")

	// A 0% stage (blue-green) takes no traffic: it is judged on the
	// candidate's pinned endpoint, and no shift is issued
	stageURL := r.aggregateURL
	if stage.TargetPercent == 0 {
		if r.handle != nil && r.handle.URL != "" {
			stageURL = r.handle.URL
		}
	} else {
		if err := c.client.ShiftTraffic(ctx, c.stageSplit(attempt, stage.TargetPercent)); err != nil {
			// The platform may or may not have applied the split;
			// treat state as unknown and revert
			r.trafficShifted = true
			attempt.TrafficShifted = true
			stage.Status = types.StageFailed
			return c.rollbackOrFail(ctx, r, fmt.Errorf("shift traffic: %w", err))
		}
		r.trafficShifted = true
		attempt.TrafficShifted = true
	}

	verdict, err := c.monitor.Run(ctx, stageURL, attempt.Thresholds.Window(), attempt.Thresholds.SampleEvery(), attempt.Thresholds)
	stage.Verdict = verdict
	attempt.LastVerdict = verdict
	if err != nil {
		// Cancelled mid-window: operator abort
		stage.Status = types.StageFailed
		c.publish(attempt, events.EventRolloutAborted, "abort observed during monitoring window")
		return c.rollbackOrFail(ctx, r, fmt.Errorf("aborted during stage %d: %w", index, err))
	}
	if !verdict.WithinThresholds {
		metrics.ThresholdBreaches.Inc()
		stage.Status = types.StageFailed
		stage.FinishedAt = time.Now().UTC()
		return c.rollbackOrFail(ctx, r, fmt.Errorf("stage %d breached thresholds: %s", index, verdict.Reason))
	}

	stage.Status = types.StagePassed
	stage.FinishedAt = time.Now().UTC()
	stageTimer.ObserveDuration(metrics.StageDuration)
	metrics.StagesAdvanced.Inc()
	c.publish(attempt, events.EventStageAdvanced, fmt.Sprintf("stage %d passed", index))
	alog.Info().Int("stage", index).Float64("error_rate", verdict.ErrorRatePercent).Msg("stage passed")

	// Soak before the next shift. The wait is cancellable: an abort
	// takes effect here, not after the delay elapses.
	if index < len(attempt.Stages)-1 && c.cfg.InterStageDelay > 0 {
		select {
		case <-time.After(c.cfg.InterStageDelay):
		case <-ctx.Done():
			c.publish(attempt, events.EventRolloutAborted, "abort observed during soak wait")
			return c.rollbackOrFail(ctx, r, fmt.Errorf("aborted during soak after stage %d: %w", index, ctx.Err()))
		}
	}
	return nil
}

// stageSplit computes the full split for a candidate percentage
func (c *Controller) stageSplit(attempt *types.DeploymentAttempt, percent int) types.TrafficSplit {
	if attempt.FirstDeployment() || percent == 100 {
		return types.TrafficSplit{attempt.CandidateRevision: 100}
	}
	return types.TrafficSplit{
		attempt.CandidateRevision: percent,
		attempt.StableRevision:    100 - percent,
	}
}

// finalize re-verifies with a short burst of direct checks; every check
// must succeed. Abort during finalizing still rolls back: a
// not-yet-confirmed success is not trusted.
func (c *Controller) finalize(ctx context.Context, r *run, alog zerolog.Logger) error {
	checker := c.newChecker(r.aggregateURL)
	for i := 0; i < c.cfg.FinalizeBurst; i++ {
		if err := ctx.Err(); err != nil {
			c.publish(r.attempt, events.EventRolloutAborted, "abort observed during finalize")
			return c.rollbackOrFail(ctx, r, fmt.Errorf("aborted during finalize: %w", err))
		}
		if sample := checker.Check(ctx); !sample.Success {
			return c.rollbackOrFail(ctx, r, fmt.Errorf("finalize check %d/%d failed: %s", i+1, c.cfg.FinalizeBurst, sample.Message))
		}
	}
	alog.Info().Int("checks", c.cfg.FinalizeBurst).Msg("finalize burst passed")
	return nil
}

// executeRecreate tears down the stable revision and publishes the
// candidate at full traffic. The downtime window is the strategy's
// accepted trade-off; once the stable revision is retired there is no
// rollback destination, so late failures surface as Failed with the
// manual-intervention flag set.
func (c *Controller) executeRecreate(ctx context.Context, r *run, alog zerolog.Logger) error {
	attempt := r.attempt

	if !attempt.FirstDeployment() {
		if err := c.client.Retire(ctx, attempt.StableRevision); err != nil {
			return c.fail(r, fmt.Errorf("retire stable revision: %w", err))
		}
		alog.Info().Str("retired", attempt.StableRevision).Msg("stable revision torn down")
	}

	handle, err := c.client.PublishCandidate(ctx, attempt.CandidateRevision, target.Metadata{
		Environment: attempt.Environment,
	})
	if err != nil {
		if attempt.FirstDeployment() {
			return c.fail(r, fmt.Errorf("publish candidate: %w", err))
		}
		return c.failLoudly(r, fmt.Errorf("publish candidate after teardown: %w", err))
	}
	r.handle = handle
	c.publish(attempt, events.EventCandidatePublished, "candidate published")

	if err := c.client.ShiftTraffic(ctx, types.TrafficSplit{attempt.CandidateRevision: 100}); err != nil {
		return c.failLoudly(r, fmt.Errorf("cutover: %w", err))
	}
	attempt.TrafficShifted = true
	r.trafficShifted = true

	aggregateURL, err := c.client.ServiceEndpoint(ctx, nil)
	if err != nil {
		return c.failLoudly(r, fmt.Errorf("endpoint lookup: %w", err))
	}
	r.aggregateURL = aggregateURL

	sample, err := probe.Await(ctx, c.newChecker(aggregateURL), c.cfg.HealthGateAttempts, c.cfg.HealthGateBackoff)
	if err != nil {
		if errors.Is(err, probe.ErrExhausted) {
			return c.failLoudly(r, fmt.Errorf("%w: %s", ErrHealthGateExhausted, sample.Message))
		}
		return c.failLoudly(r, fmt.Errorf("post-cutover confirmation: %w", err))
	}

	attempt.Status = types.AttemptSucceeded
	attempt.StableRevision = attempt.CandidateRevision
	return nil
}

// rollbackOrFail routes a post-traffic failure through the rollback
// coordinator, or straight to Failed when there is nothing to revert to.
// It is the single rollback entry point in the controller.
func (c *Controller) rollbackOrFail(ctx context.Context, r *run, cause error) error {
	attempt := r.attempt

	if !r.trafficShifted || attempt.FirstDeployment() {
		return c.fail(r, cause)
	}

	attempt.FailureReason = cause.Error()
	c.logger.Warn().Str("attempt_id", attempt.ID).Err(cause).Msg("rolling back")

	// Rollback must proceed even when the failure was an abort: run it
	// on a context detached from the cancelled one
	outcome, rbErr := c.rollbacker.Rollback(context.WithoutCancel(ctx), attempt.StableRevision)
	metrics.RollbacksTotal.WithLabelValues(string(outcome)).Inc()

	if outcome != rollback.OutcomeReverted {
		attempt.Status = types.AttemptFailed
		attempt.ManualInterventionRequired = true
		attempt.FailureReason = fmt.Sprintf("%s; rollback failed: %v", cause, rbErr)
		return fmt.Errorf("%v; additionally: %w", cause, rbErr)
	}

	attempt.Status = types.AttemptRolledBack
	return cause
}

// fail terminates the attempt as Failed with no rollback
func (c *Controller) fail(r *run, cause error) error {
	r.attempt.Status = types.AttemptFailed
	r.attempt.FailureReason = cause.Error()
	return cause
}

// failLoudly is fail plus the manual-intervention flag, for failures
// where the platform may be serving no healthy revision at all
func (c *Controller) failLoudly(r *run, cause error) error {
	r.attempt.ManualInterventionRequired = true
	return c.fail(r, cause)
}

// finish stamps, persists and reports the terminal state
func (c *Controller) finish(r *run, cause error, timer *metrics.Timer) {
	attempt := r.attempt
	attempt.FinishedAt = time.Now().UTC()

	metrics.RolloutsTotal.WithLabelValues(string(attempt.Strategy), string(attempt.Status)).Inc()
	timer.ObserveDuration(metrics.RolloutDuration.WithLabelValues(string(attempt.Strategy)))

	c.persist(attempt)

	switch attempt.Status {
	case types.AttemptSucceeded:
		c.publish(attempt, events.EventRolloutSucceeded, "rollout succeeded")
		c.logger.Info().Str("attempt_id", attempt.ID).Msg("rollout succeeded")
	case types.AttemptRolledBack:
		c.publish(attempt, events.EventRolloutRolledBack, attempt.FailureReason)
		c.logger.Warn().Str("attempt_id", attempt.ID).Str("reason", attempt.FailureReason).Msg("rollout rolled back")
	case types.AttemptFailed:
		c.publish(attempt, events.EventRolloutFailed, attempt.FailureReason)
		event := c.logger.Error().Str("attempt_id", attempt.ID).Str("reason", attempt.FailureReason)
		if attempt.ManualInterventionRequired {
			event = event.Bool("manual_intervention_required", true)
		}
		event.Msg("rollout failed")
	default:
		c.logger.Error().Str("attempt_id", attempt.ID).Err(cause).Msg("rollout ended without terminal status")
	}
}

// persist writes the attempt record; persistence failures are logged,
// never allowed to affect the rollout outcome
func (c *Controller) persist(attempt *types.DeploymentAttempt) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(attempt); err != nil {
		c.logger.Error().Err(err).Str("attempt_id", attempt.ID).Msg("failed to persist attempt record")
	}
}

func (c *Controller) publish(attempt *types.DeploymentAttempt, eventType events.EventType, message string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{
		AttemptID: attempt.ID,
		Type:      eventType,
		Message:   message,
		Metadata: map[string]string{
			"service":  attempt.Service,
			"strategy": string(attempt.Strategy),
		},
	})
}

// AttemptID derives a unique attempt identifier from environment,
// timestamp, revision marker and a random suffix
func AttemptID(environment, revision string) string {
	marker := revision
	if idx := strings.LastIndexAny(marker, ":/"); idx >= 0 {
		marker = marker[idx+1:]
	}
	if environment == "" {
		environment = "default"
	}
	stamp := time.Now().UTC().Format("20060102150405")
	return fmt.Sprintf("%s-%s-%s-%s", environment, marker, stamp, uuid.NewString()[:8])
}

// stableRevision picks the revision serving the largest traffic share,
// or empty when nothing serves traffic yet. Ties (a 50/50 split left by
// an interrupted rollout) break lexicographically so the rollback target
// does not depend on map iteration order.
func stableRevision(split types.TrafficSplit) string {
	best := ""
	bestPercent := 0
	for revision, percent := range split {
		if percent == 0 {
			continue
		}
		if percent > bestPercent || (percent == bestPercent && revision < best) {
			best = revision
			bestPercent = percent
		}
	}
	return best
}
