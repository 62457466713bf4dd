package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shiftgate/shiftgate/pkg/events"
	"github.com/shiftgate/shiftgate/pkg/log"
	"github.com/shiftgate/shiftgate/pkg/metrics"
	"github.com/shiftgate/shiftgate/pkg/record"
	"github.com/shiftgate/shiftgate/pkg/strategy"
	"github.com/shiftgate/shiftgate/pkg/target"
	"github.com/shiftgate/shiftgate/pkg/types"
)

var (
	// ErrAttemptNotRunning is returned when an abort targets an attempt
	// that is not currently executing
	ErrAttemptNotRunning = errors.New("attempt is not running")

	// ErrInvalidRequest is returned when a start request is missing
	// required fields
	ErrInvalidRequest = errors.New("invalid rollout request")

	// ErrServiceBusy is returned when the service already has an attempt
	// in flight
	ErrServiceBusy = errors.New("service already has a rollout in flight")
)

// StartRequest asks the engine to begin a rollout
type StartRequest struct {
	Service           string
	Environment       string
	CandidateRevision string
	Strategy          string
	Options           strategy.Options
}

func (r StartRequest) validate() error {
	if r.Service == "" {
		return fmt.Errorf("%w: service is required", ErrInvalidRequest)
	}
	if r.CandidateRevision == "" {
		return fmt.Errorf("%w: candidateRevision is required", ErrInvalidRequest)
	}
	return nil
}

// Engine owns the set of in-flight rollout attempts. Each attempt runs
// in its own goroutine under its own controller; the engine holds the
// cancel function that delivers aborts and refuses to start two
// attempts for the same service concurrently.
type Engine struct {
	store     record.Store
	broker    *events.Broker
	newClient func(service string) target.Client
	logger    zerolog.Logger

	mu       sync.Mutex
	running  map[string]context.CancelFunc // attempt ID → abort
	services map[string]string             // service → running attempt ID
	wg       sync.WaitGroup
}

// NewEngine creates an engine that talks to the platform at platformURL
func NewEngine(platformURL string, store record.Store, broker *events.Broker) *Engine {
	return &Engine{
		store:  store,
		broker: broker,
		newClient: func(service string) target.Client {
			return target.NewRESTClient(platformURL, service)
		},
		logger:   log.WithComponent("engine"),
		running:  make(map[string]context.CancelFunc),
		services: make(map[string]string),
	}
}

// WithClientFactory overrides how platform clients are built
func (e *Engine) WithClientFactory(factory func(service string) target.Client) *Engine {
	e.newClient = factory
	return e
}

// Start validates the request, resolves the strategy and launches the
// rollout in the background. The returned ID can be used to query or
// abort the attempt.
func (e *Engine) Start(req StartRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	// Strategy resolution happens before anything touches the platform
	// so an unknown strategy fails fast
	cfg, err := strategy.Resolve(req.Strategy, req.Options)
	if err != nil {
		return "", err
	}

	id := AttemptID(req.Environment, req.CandidateRevision)

	e.mu.Lock()
	if runningID, busy := e.services[req.Service]; busy {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: service %s is running attempt %s", ErrServiceBusy, req.Service, runningID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.running[id] = cancel
	e.services[req.Service] = id
	e.mu.Unlock()

	ctrl := New(e.newClient(req.Service), e.store, cfg).WithBroker(e.broker)

	metrics.RolloutsActive.Inc()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer metrics.RolloutsActive.Dec()
		defer e.release(id, req.Service, cancel)

		_, runErr := ctrl.Run(ctx, Request{
			ID:                id,
			Service:           req.Service,
			Environment:       req.Environment,
			CandidateRevision: req.CandidateRevision,
		})
		if runErr != nil {
			e.logger.Warn().Str("attempt_id", id).Err(runErr).Msg("rollout ended with failure")
		}
	}()

	e.logger.Info().
		Str("attempt_id", id).
		Str("service", req.Service).
		Str("strategy", string(cfg.Strategy)).
		Msg("rollout accepted")
	return id, nil
}

func (e *Engine) release(id, service string, cancel context.CancelFunc) {
	cancel()
	e.mu.Lock()
	delete(e.running, id)
	if e.services[service] == id {
		delete(e.services, service)
	}
	e.mu.Unlock()
}

// Abort cancels a running attempt. The controller observes the cancel
// within one sampling interval and routes through rollback when traffic
// has already shifted.
func (e *Engine) Abort(id string) error {
	e.mu.Lock()
	cancel, ok := e.running[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrAttemptNotRunning, id)
	}
	e.logger.Warn().Str("attempt_id", id).Msg("abort requested")
	cancel()
	return nil
}

// Status returns the persisted attempt record and whether the attempt
// is still executing
func (e *Engine) Status(id string) (*types.DeploymentAttempt, bool, error) {
	attempt, err := e.store.Load(id)
	if err != nil {
		return nil, false, err
	}
	e.mu.Lock()
	_, active := e.running[id]
	e.mu.Unlock()
	return attempt, active, nil
}

// List returns all persisted attempt records
func (e *Engine) List() ([]*types.DeploymentAttempt, error) {
	return e.store.List()
}

// ActiveCount returns the number of attempts currently executing
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// Shutdown aborts every running attempt and waits for their rollbacks
// to settle, bounded by ctx
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, cancel := range e.running {
		cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out with %d attempts still settling: %w", e.ActiveCount(), ctx.Err())
	}
}
