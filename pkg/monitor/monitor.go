package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftgate/shiftgate/pkg/log"
	"github.com/shiftgate/shiftgate/pkg/probe"
	"github.com/shiftgate/shiftgate/pkg/types"
)

// CheckerFactory builds a prober for an endpoint URL
type CheckerFactory func(url string) probe.Checker

// Monitor samples an endpoint on a fixed interval for a fixed window and
// judges the aggregate against thresholds. One Run call blocks the
// calling stage for the full window; it is the rollout's intentional
// suspension point.
type Monitor struct {
	newChecker CheckerFactory
	logger     zerolog.Logger
}

// New creates a monitor probing over HTTP
func New() *Monitor {
	return &Monitor{
		newChecker: func(url string) probe.Checker {
			return probe.NewHTTPChecker(url)
		},
		logger: log.WithComponent("monitor"),
	}
}

// WithCheckerFactory overrides how probers are built, used for tests and
// for TCP-only endpoints
func (m *Monitor) WithCheckerFactory(factory CheckerFactory) *Monitor {
	m.newChecker = factory
	return m
}

// Run samples url every interval until window has elapsed, then returns
// the aggregate verdict. Cancellation is observed at every tick: an abort
// mid-window takes effect within one sample interval, and the error
// returned is the context's.
func (m *Monitor) Run(ctx context.Context, url string, window, interval time.Duration, th types.Thresholds) (*types.Verdict, error) {
	// Threshold resolution guarantees positive durations; refuse rather
	// than panic in time.NewTicker if a caller bypasses it
	if window <= 0 || interval <= 0 {
		return nil, fmt.Errorf("monitor: window %s and interval %s must be positive", window, interval)
	}

	checker := m.newChecker(url)

	var (
		total        int
		failed       int
		latencySumMs float64
	)

	sample := func() {
		s := checker.Check(ctx)
		total++
		if s.Success {
			latencySumMs += s.LatencyMillis()
		} else {
			failed++
			m.logger.Debug().Str("url", url).Str("reason", s.Message).Msg("probe failed")
		}
	}

	deadline := time.NewTimer(window)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First sample immediately; the window then bounds the rest
	sample()

	for {
		select {
		case <-ticker.C:
			sample()
		case <-deadline.C:
			verdict := Evaluate(total, failed, latencySumMs, th)
			m.logger.Info().
				Str("url", url).
				Int("samples", verdict.Samples).
				Float64("error_rate", verdict.ErrorRatePercent).
				Float64("avg_latency_ms", verdict.AvgLatencyMs).
				Bool("within_thresholds", verdict.WithinThresholds).
				Msg("monitoring window closed")
			return verdict, nil
		case <-ctx.Done():
			return Evaluate(total, failed, latencySumMs, th), ctx.Err()
		}
	}
}

// Evaluate computes the verdict for a completed window. Error rate counts
// failed samples against all samples; average latency is computed only
// over successful samples, so a timed-out probe does not masquerade as
// real latency. Threshold comparisons are inclusive. Zero samples is a
// breach: absence of signal is not success.
func Evaluate(total, failed int, latencySumMs float64, th types.Thresholds) *types.Verdict {
	if total == 0 {
		return &types.Verdict{
			WithinThresholds: false,
			Reason:           "no samples collected",
		}
	}

	errorRate := float64(failed) / float64(total) * 100

	var avgLatency float64
	if succeeded := total - failed; succeeded > 0 {
		avgLatency = latencySumMs / float64(succeeded)
	}

	verdict := &types.Verdict{
		ErrorRatePercent: errorRate,
		AvgLatencyMs:     avgLatency,
		Samples:          total,
		WithinThresholds: true,
	}

	if errorRate > th.MaxErrorRatePercent {
		verdict.WithinThresholds = false
		verdict.Reason = fmt.Sprintf("error rate %.2f%% exceeds %.2f%%", errorRate, th.MaxErrorRatePercent)
	} else if avgLatency > th.MaxAvgResponseTimeMs {
		verdict.WithinThresholds = false
		verdict.Reason = fmt.Sprintf("average latency %.1fms exceeds %.1fms", avgLatency, th.MaxAvgResponseTimeMs)
	}

	return verdict
}
