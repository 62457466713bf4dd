package plan

import (
	"testing"

	"github.com/shiftgate/shiftgate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStages_Canary tests canary ladder computation
func TestStages_Canary(t *testing.T) {
	tests := []struct {
		name      string
		initial   int
		increment int
		expected  []int
	}{
		{
			name:      "classic ladder",
			initial:   10,
			increment: 25,
			expected:  []int{10, 35, 60, 85, 100},
		},
		{
			name:      "even steps land on 100",
			initial:   20,
			increment: 20,
			expected:  []int{20, 40, 60, 80, 100},
		},
		{
			name:      "last partial step widened",
			initial:   50,
			increment: 40,
			expected:  []int{50, 90, 100},
		},
		{
			name:      "initial already full",
			initial:   100,
			increment: 10,
			expected:  []int{100},
		},
		{
			name:      "single percent start",
			initial:   1,
			increment: 99,
			expected:  []int{1, 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := Stages(types.StrategyCanary, tt.initial, tt.increment)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, stages)
		})
	}
}

// TestStages_CanaryMonotonic verifies stage monotonicity and terminal 100
func TestStages_CanaryMonotonic(t *testing.T) {
	for initial := 1; initial <= 100; initial += 7 {
		for increment := 1; increment <= 50; increment += 9 {
			stages, err := Stages(types.StrategyCanary, initial, increment)
			require.NoError(t, err)
			require.NotEmpty(t, stages)

			for i := 1; i < len(stages); i++ {
				assert.Greater(t, stages[i], stages[i-1],
					"stages must be strictly increasing (initial=%d increment=%d)", initial, increment)
			}
			assert.Equal(t, 100, stages[len(stages)-1],
				"final stage must be exactly 100 (initial=%d increment=%d)", initial, increment)
		}
	}
}

func TestStages_Rolling(t *testing.T) {
	stages, err := Stages(types.StrategyRolling, 10, 25)
	require.NoError(t, err)
	assert.Equal(t, []int{100}, stages)
}

func TestStages_BlueGreen(t *testing.T) {
	stages, err := Stages(types.StrategyBlueGreen, 10, 25)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 100}, stages)
}

func TestStages_Recreate(t *testing.T) {
	stages, err := Stages(types.StrategyRecreate, 10, 25)
	require.NoError(t, err)
	assert.Empty(t, stages)
}

func TestStages_InvalidParams(t *testing.T) {
	tests := []struct {
		name      string
		initial   int
		increment int
	}{
		{name: "zero initial", initial: 0, increment: 10},
		{name: "negative initial", initial: -5, increment: 10},
		{name: "initial above 100", initial: 101, increment: 10},
		{name: "zero increment", initial: 10, increment: 0},
		{name: "negative increment", initial: 10, increment: -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Stages(types.StrategyCanary, tt.initial, tt.increment)
			assert.ErrorIs(t, err, ErrInvalidStagePlan)
		})
	}
}

func TestStages_UnknownStrategy(t *testing.T) {
	_, err := Stages(types.Strategy("weighted-dice"), 10, 25)
	assert.ErrorIs(t, err, ErrInvalidStagePlan)
}

func TestAsStages(t *testing.T) {
	stages := AsStages([]int{10, 50, 100})
	require.Len(t, stages, 3)
	for i, stage := range stages {
		assert.Equal(t, types.StagePending, stage.Status)
		assert.Equal(t, []int{10, 50, 100}[i], stage.TargetPercent)
	}
}
