package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shiftgate/shiftgate/pkg/probe"
	"github.com/shiftgate/shiftgate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedChecker always returns the same outcome with the same latency
type fixedChecker struct {
	success bool
	latency time.Duration
	calls   atomic.Int64
}

func (f *fixedChecker) Check(ctx context.Context) probe.Sample {
	f.calls.Add(1)
	return probe.Sample{
		Success:   f.success,
		CheckedAt: time.Now(),
		Latency:   f.latency,
	}
}

func (f *fixedChecker) Kind() probe.Kind { return probe.KindHTTP }

func thresholds() types.Thresholds {
	return types.Thresholds{
		MaxErrorRatePercent:   5,
		MaxAvgResponseTimeMs:  500,
		MonitorWindowSeconds:  60,
		SampleIntervalSeconds: 10,
	}
}

func TestRun_AllHealthy(t *testing.T) {
	checker := &fixedChecker{success: true, latency: 20 * time.Millisecond}
	m := New().WithCheckerFactory(func(url string) probe.Checker { return checker })

	verdict, err := m.Run(context.Background(), "http://svc.local", 60*time.Millisecond, 10*time.Millisecond, thresholds())
	require.NoError(t, err)

	assert.True(t, verdict.WithinThresholds)
	assert.Zero(t, verdict.ErrorRatePercent)
	assert.Greater(t, verdict.Samples, 1)
	assert.InDelta(t, 20, verdict.AvgLatencyMs, 1)
}

func TestRun_AllFailing(t *testing.T) {
	checker := &fixedChecker{success: false}
	m := New().WithCheckerFactory(func(url string) probe.Checker { return checker })

	verdict, err := m.Run(context.Background(), "http://svc.local", 50*time.Millisecond, 10*time.Millisecond, thresholds())
	require.NoError(t, err)

	assert.False(t, verdict.WithinThresholds)
	assert.Equal(t, float64(100), verdict.ErrorRatePercent)
	assert.NotEmpty(t, verdict.Reason)
}

func TestRun_CancelledMidWindow(t *testing.T) {
	checker := &fixedChecker{success: true, latency: time.Millisecond}
	m := New().WithCheckerFactory(func(url string) probe.Checker { return checker })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	verdict, err := m.Run(ctx, "http://svc.local", time.Hour, 10*time.Millisecond, thresholds())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotNil(t, verdict)
	// Abort must take effect within roughly one sample interval, not
	// after the full window
	assert.Less(t, elapsed, time.Second)
}

func TestRun_NonPositiveDurationsRejected(t *testing.T) {
	checker := &fixedChecker{success: true}
	m := New().WithCheckerFactory(func(url string) probe.Checker { return checker })

	verdict, err := m.Run(context.Background(), "http://svc.local", time.Minute, 0, thresholds())
	require.Error(t, err)
	assert.Nil(t, verdict)

	verdict, err = m.Run(context.Background(), "http://svc.local", 0, time.Second, thresholds())
	require.Error(t, err)
	assert.Nil(t, verdict)
}

func TestEvaluate_InclusiveBoundary(t *testing.T) {
	th := thresholds() // max error rate 5%

	// 1 failure in 20 samples = exactly 5%
	verdict := Evaluate(20, 1, 19*100, th)
	assert.Equal(t, float64(5), verdict.ErrorRatePercent)
	assert.True(t, verdict.WithinThresholds, "value exactly at the limit must pass")

	// 2 failures in 20 samples = 10%
	verdict = Evaluate(20, 2, 18*100, th)
	assert.False(t, verdict.WithinThresholds)
}

func TestEvaluate_LatencyBoundary(t *testing.T) {
	th := thresholds() // max avg latency 500ms

	verdict := Evaluate(10, 0, 10*500, th)
	assert.Equal(t, float64(500), verdict.AvgLatencyMs)
	assert.True(t, verdict.WithinThresholds)

	verdict = Evaluate(10, 0, 10*500+1, th)
	assert.False(t, verdict.WithinThresholds)
	assert.Contains(t, verdict.Reason, "latency")
}

func TestEvaluate_ZeroSamplesIsBreach(t *testing.T) {
	verdict := Evaluate(0, 0, 0, thresholds())
	assert.False(t, verdict.WithinThresholds)
	assert.Equal(t, "no samples collected", verdict.Reason)
}

func TestEvaluate_FailedSamplesExcludedFromLatency(t *testing.T) {
	// 5 successes at 100ms each, 5 failures contributing nothing
	verdict := Evaluate(10, 5, 5*100, thresholds())
	assert.Equal(t, float64(100), verdict.AvgLatencyMs)
	assert.Equal(t, float64(50), verdict.ErrorRatePercent)
}
