package rollback

import (
	"context"
	"testing"
	"time"

	"github.com/shiftgate/shiftgate/pkg/probe"
	"github.com/shiftgate/shiftgate/pkg/target"
	"github.com/shiftgate/shiftgate/pkg/target/targettest"
	"github.com/shiftgate/shiftgate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	healthy bool
}

func (s *stubChecker) Check(ctx context.Context) probe.Sample {
	return probe.Sample{Success: s.healthy, CheckedAt: time.Now()}
}

func (s *stubChecker) Kind() probe.Kind { return probe.KindHTTP }

func newCoordinator(client target.Client, healthy bool) *Coordinator {
	return New(client).
		WithConfirmation(3, 0).
		WithCheckerFactory(func(url string) probe.Checker {
			return &stubChecker{healthy: healthy}
		})
}

func TestRollback_Reverted(t *testing.T) {
	fake := &targettest.FakeClient{
		Traffic:      types.TrafficSplit{"web:v1": 60, "web:v2": 40},
		AggregateURL: "http://web.local",
	}

	outcome, err := newCoordinator(fake, true).Rollback(context.Background(), "web:v1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReverted, outcome)
	assert.Equal(t, types.TrafficSplit{"web:v1": 100}, fake.Traffic)
}

func TestRollback_Idempotent(t *testing.T) {
	fake := &targettest.FakeClient{
		Traffic:      types.TrafficSplit{"web:v1": 60, "web:v2": 40},
		AggregateURL: "http://web.local",
	}
	coordinator := newCoordinator(fake, true)

	_, err := coordinator.Rollback(context.Background(), "web:v1")
	require.NoError(t, err)
	once := fake.Traffic

	_, err = coordinator.Rollback(context.Background(), "web:v1")
	require.NoError(t, err)

	assert.Equal(t, once, fake.Traffic, "second rollback must leave the same split as the first")
	assert.Equal(t, 2, fake.ShiftCount())
}

func TestRollback_ShiftFails(t *testing.T) {
	fake := &targettest.FakeClient{
		Traffic:  types.TrafficSplit{"web:v1": 60, "web:v2": 40},
		ShiftErr: target.ErrTargetUnreachable,
	}

	outcome, err := newCoordinator(fake, true).Rollback(context.Background(), "web:v1")
	assert.Equal(t, OutcomeRevertFailed, outcome)
	assert.ErrorIs(t, err, ErrRevertFailed)
}

func TestRollback_ConfirmationExhausted(t *testing.T) {
	fake := &targettest.FakeClient{
		Traffic:      types.TrafficSplit{"web:v1": 60, "web:v2": 40},
		AggregateURL: "http://web.local",
	}

	outcome, err := newCoordinator(fake, false).Rollback(context.Background(), "web:v1")
	assert.Equal(t, OutcomeRevertFailed, outcome)
	assert.ErrorIs(t, err, ErrRevertFailed)

	// Traffic was still shifted to stable even though confirmation failed
	assert.Equal(t, types.TrafficSplit{"web:v1": 100}, fake.Traffic)
}

func TestRollback_EndpointLookupFails(t *testing.T) {
	fake := &targettest.FakeClient{
		Traffic:     types.TrafficSplit{"web:v1": 60, "web:v2": 40},
		EndpointErr: target.ErrTargetUnreachable,
	}

	outcome, err := newCoordinator(fake, true).Rollback(context.Background(), "web:v1")
	assert.Equal(t, OutcomeRevertFailed, outcome)
	assert.ErrorIs(t, err, ErrRevertFailed)
}
