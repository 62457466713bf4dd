package types

import (
	"fmt"
	"time"

	"github.com/shiftgate/shiftgate/pkg/probe"
)

// Strategy defines how a new revision is rolled out
type Strategy string

const (
	StrategyRolling   Strategy = "rolling"
	StrategyBlueGreen Strategy = "blue-green"
	StrategyCanary    Strategy = "canary"
	StrategyRecreate  Strategy = "recreate"
)

// AttemptStatus represents the lifecycle state of a rollout attempt
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in-progress"
	AttemptSucceeded  AttemptStatus = "succeeded"
	AttemptFailed     AttemptStatus = "failed"
	AttemptRolledBack AttemptStatus = "rolled-back"
)

// Terminal reports whether the status is final. A terminal attempt is
// immutable: no traffic mutations and no further stage transitions.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSucceeded || s == AttemptFailed || s == AttemptRolledBack
}

// StageStatus represents the state of a single traffic stage
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageActive  StageStatus = "active"
	StagePassed  StageStatus = "passed"
	StageFailed  StageStatus = "failed"
)

// Stage is one step of a rollout: a target traffic percentage for the
// candidate revision plus the outcome of monitoring at that percentage.
type Stage struct {
	TargetPercent int         `json:"targetPercent"`
	Status        StageStatus `json:"status"`
	StartedAt     time.Time   `json:"startedAt,omitempty"`
	FinishedAt    time.Time   `json:"finishedAt,omitempty"`
	Verdict       *Verdict    `json:"verdict,omitempty"`
}

// Thresholds are the performance limits a candidate must stay within
// while it holds traffic. Comparisons are inclusive: a value exactly at
// the limit passes.
type Thresholds struct {
	MaxErrorRatePercent   float64 `json:"maxErrorRatePercent"`
	MaxAvgResponseTimeMs  float64 `json:"maxAvgResponseTimeMs"`
	MonitorWindowSeconds  int     `json:"monitorWindowSeconds"`
	SampleIntervalSeconds int     `json:"sampleIntervalSeconds"`
}

// Window returns the monitoring window as a duration
func (t Thresholds) Window() time.Duration {
	return time.Duration(t.MonitorWindowSeconds) * time.Second
}

// SampleEvery returns the sampling interval as a duration
func (t Thresholds) SampleEvery() time.Duration {
	return time.Duration(t.SampleIntervalSeconds) * time.Second
}

// DefaultThresholds returns Thresholds with sensible defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxErrorRatePercent:   5,
		MaxAvgResponseTimeMs:  1000,
		MonitorWindowSeconds:  60,
		SampleIntervalSeconds: 10,
	}
}

// Verdict is the aggregate outcome of one monitoring window
type Verdict struct {
	ErrorRatePercent float64 `json:"errorRatePercent"`
	AvgLatencyMs     float64 `json:"avgLatencyMs"`
	Samples          int     `json:"samples"`
	WithinThresholds bool    `json:"withinThresholds"`
	Reason           string  `json:"reason,omitempty"`
}

// TrafficSplit maps revision identifiers to their share of incoming
// traffic. A valid split always sums to exactly 100.
type TrafficSplit map[string]int

// Validate checks that all percentages are in range and sum to 100
func (s TrafficSplit) Validate() error {
	sum := 0
	for revision, percent := range s {
		if percent < 0 || percent > 100 {
			return fmt.Errorf("invalid percentage %d for revision %s", percent, revision)
		}
		sum += percent
	}
	if sum != 100 {
		return fmt.Errorf("traffic split sums to %d, expected 100", sum)
	}
	return nil
}

// DeploymentAttempt is the record of one rollout execution. It is owned
// exclusively by the controller running the attempt and becomes immutable
// once Status is terminal.
type DeploymentAttempt struct {
	ID                string        `json:"id"`
	Service           string        `json:"service"`
	Environment       string        `json:"environment"`
	Strategy          Strategy      `json:"strategy"`
	CandidateRevision string        `json:"candidateRevision"`
	StableRevision    string        `json:"stableRevision,omitempty"`
	Stages            []*Stage      `json:"stages"`
	CurrentStageIndex int           `json:"currentStageIndex"`
	Status            AttemptStatus `json:"status"`
	Thresholds        Thresholds    `json:"thresholds"`

	// TrafficShifted records whether any traffic has moved toward the
	// candidate. It gates whether a failure routes through rollback.
	TrafficShifted bool `json:"trafficShifted"`

	// ManualInterventionRequired is set when rollback itself failed and
	// the system cannot guarantee traffic is on a known-good revision.
	ManualInterventionRequired bool `json:"manualInterventionRequired,omitempty"`

	LastVerdict   *Verdict  `json:"lastVerdict,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	FinishedAt    time.Time `json:"finishedAt,omitempty"`
}

// ActiveStage returns the stage currently holding traffic, or nil if no
// stage is active
func (a *DeploymentAttempt) ActiveStage() *Stage {
	for _, stage := range a.Stages {
		if stage.Status == StageActive {
			return stage
		}
	}
	return nil
}

// FirstDeployment reports whether no revision was serving traffic when
// the attempt started. Rollback is impossible by definition in this case.
func (a *DeploymentAttempt) FirstDeployment() bool {
	return a.StableRevision == ""
}

// RolloutConfig is the resolved configuration the controller runs with.
// It is produced by the strategy selector before any platform call.
type RolloutConfig struct {
	Strategy         Strategy      `json:"strategy"`
	InitialPercent   int           `json:"initialPercent"`
	IncrementPercent int           `json:"incrementPercent"`
	InterStageDelay  time.Duration `json:"interStageDelay"`

	// RequiresIsolatedHealthGate controls whether the candidate is probed
	// on its revision-pinned endpoint before receiving any traffic.
	RequiresIsolatedHealthGate bool `json:"requiresIsolatedHealthGate"`

	HealthGateAttempts int           `json:"healthGateAttempts"`
	HealthGateBackoff  time.Duration `json:"healthGateBackoff"`
	FinalizeBurst      int           `json:"finalizeBurst"`

	// Probe is the checker kind used for health gates, monitoring and
	// rollback confirmation
	Probe probe.Kind `json:"probe"`

	Thresholds Thresholds `json:"thresholds"`
}
