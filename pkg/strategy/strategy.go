package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/shiftgate/shiftgate/pkg/probe"
	"github.com/shiftgate/shiftgate/pkg/types"
)

var (
	// ErrUnknownStrategy indicates a strategy name that is not supported.
	// Resolution happens before any platform call, so an unknown name
	// fails fast with no partial state created.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrInvalidThresholds indicates threshold values that cannot drive a
	// monitoring window
	ErrInvalidThresholds = errors.New("invalid thresholds")

	// ErrUnknownProbe indicates a probe kind that is not supported
	ErrUnknownProbe = errors.New("unknown probe kind")
)

// Options are the user-tunable rollout parameters. Zero values are
// replaced with defaults during resolution.
type Options struct {
	InitialPercent     int
	IncrementPercent   int
	InterStageDelay    time.Duration
	HealthGateAttempts int
	HealthGateBackoff  time.Duration
	FinalizeBurst      int
	Thresholds         types.Thresholds

	// Probe selects the checker kind used for health gates, monitoring
	// and rollback confirmation. Empty means HTTP.
	Probe probe.Kind
}

const (
	defaultInitialPercent     = 10
	defaultIncrementPercent   = 25
	defaultInterStageDelay    = 30 * time.Second
	defaultHealthGateAttempts = 10
	defaultHealthGateBackoff  = 3 * time.Second
	defaultFinalizeBurst      = 5
)

// Resolve maps a strategy name to the controller configuration for it
func Resolve(name string, opts Options) (*types.RolloutConfig, error) {
	cfg := &types.RolloutConfig{
		InitialPercent:     opts.InitialPercent,
		IncrementPercent:   opts.IncrementPercent,
		InterStageDelay:    opts.InterStageDelay,
		HealthGateAttempts: opts.HealthGateAttempts,
		HealthGateBackoff:  opts.HealthGateBackoff,
		FinalizeBurst:      opts.FinalizeBurst,
	}

	if cfg.InitialPercent == 0 {
		cfg.InitialPercent = defaultInitialPercent
	}
	if cfg.IncrementPercent == 0 {
		cfg.IncrementPercent = defaultIncrementPercent
	}
	if cfg.InterStageDelay == 0 {
		cfg.InterStageDelay = defaultInterStageDelay
	}
	if cfg.HealthGateAttempts == 0 {
		cfg.HealthGateAttempts = defaultHealthGateAttempts
	}
	if cfg.HealthGateBackoff == 0 {
		cfg.HealthGateBackoff = defaultHealthGateBackoff
	}
	if cfg.FinalizeBurst == 0 {
		cfg.FinalizeBurst = defaultFinalizeBurst
	}

	thresholds, err := resolveThresholds(opts.Thresholds)
	if err != nil {
		return nil, err
	}
	cfg.Thresholds = thresholds

	switch opts.Probe {
	case "", probe.KindHTTP:
		cfg.Probe = probe.KindHTTP
	case probe.KindTCP:
		cfg.Probe = probe.KindTCP
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProbe, opts.Probe)
	}

	switch types.Strategy(name) {
	case types.StrategyCanary:
		cfg.Strategy = types.StrategyCanary
		cfg.RequiresIsolatedHealthGate = true

	case types.StrategyRolling:
		cfg.Strategy = types.StrategyRolling
		cfg.RequiresIsolatedHealthGate = true

	case types.StrategyBlueGreen:
		cfg.Strategy = types.StrategyBlueGreen
		cfg.RequiresIsolatedHealthGate = true
		// The 0% → 100% jump is instantaneous; there is no soak between
		// the gate stage and the cutover.
		cfg.InterStageDelay = 0

	case types.StrategyRecreate:
		cfg.Strategy = types.StrategyRecreate
		// The stable revision is torn down before the candidate exists,
		// so there is no isolated endpoint to gate against.
		cfg.RequiresIsolatedHealthGate = false

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}

	return cfg, nil
}

// resolveThresholds fills unset threshold fields with defaults, field by
// field. Zero means unset, like every other option: a partially
// specified block must never reach the monitor with a zero window or
// sampling interval.
func resolveThresholds(th types.Thresholds) (types.Thresholds, error) {
	if th.MaxErrorRatePercent < 0 || th.MaxAvgResponseTimeMs < 0 ||
		th.MonitorWindowSeconds < 0 || th.SampleIntervalSeconds < 0 {
		return th, fmt.Errorf("%w: values must not be negative", ErrInvalidThresholds)
	}

	def := types.DefaultThresholds()
	if th.MaxErrorRatePercent == 0 {
		th.MaxErrorRatePercent = def.MaxErrorRatePercent
	}
	if th.MaxAvgResponseTimeMs == 0 {
		th.MaxAvgResponseTimeMs = def.MaxAvgResponseTimeMs
	}
	if th.MonitorWindowSeconds == 0 {
		th.MonitorWindowSeconds = def.MonitorWindowSeconds
	}
	if th.SampleIntervalSeconds == 0 {
		th.SampleIntervalSeconds = def.SampleIntervalSeconds
	}

	if th.SampleIntervalSeconds > th.MonitorWindowSeconds {
		return th, fmt.Errorf("%w: sample interval %ds exceeds window %ds",
			ErrInvalidThresholds, th.SampleIntervalSeconds, th.MonitorWindowSeconds)
	}
	return th, nil
}
