package plan

import (
	"errors"
	"fmt"

	"github.com/shiftgate/shiftgate/pkg/types"
)

// ErrInvalidStagePlan indicates the plan parameters cannot produce a
// valid stage sequence
var ErrInvalidStagePlan = errors.New("invalid stage plan")

// Stages computes the ordered sequence of candidate traffic percentages
// for a strategy. The function is pure: it performs no I/O and depends
// only on its arguments.
//
// Canary produces a strictly increasing ladder from initialPercent in
// incrementPercent steps, ending at exactly 100. The last partial step
// is widened rather than overshot: [10, 35, 60, 85, 100] for 10/25.
//
// Rolling is a single [100] step; the platform handles the gradual
// instance replacement itself, the engine still health-gates it.
//
// BlueGreen is [0, 100]: the 0% stage exists purely to run the health
// gate against the isolated candidate endpoint before the cutover.
//
// Recreate is an empty sequence; the controller tears down the stable
// revision and publishes the candidate directly at full traffic.
func Stages(strategy types.Strategy, initialPercent, incrementPercent int) ([]int, error) {
	switch strategy {
	case types.StrategyCanary:
		if initialPercent < 1 || initialPercent > 100 {
			return nil, fmt.Errorf("%w: initial percent %d outside [1,100]", ErrInvalidStagePlan, initialPercent)
		}
		if incrementPercent < 1 {
			return nil, fmt.Errorf("%w: increment percent %d must be at least 1", ErrInvalidStagePlan, incrementPercent)
		}

		var stages []int
		for percent := initialPercent; percent < 100; percent += incrementPercent {
			stages = append(stages, percent)
		}
		return append(stages, 100), nil

	case types.StrategyRolling:
		return []int{100}, nil

	case types.StrategyBlueGreen:
		return []int{0, 100}, nil

	case types.StrategyRecreate:
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unsupported strategy %q", ErrInvalidStagePlan, strategy)
	}
}

// AsStages converts a percentage sequence into pending stage records
func AsStages(percents []int) []*types.Stage {
	stages := make([]*types.Stage, 0, len(percents))
	for _, percent := range percents {
		stages = append(stages, &types.Stage{
			TargetPercent: percent,
			Status:        types.StagePending,
		})
	}
	return stages
}
