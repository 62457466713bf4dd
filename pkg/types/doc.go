/*
Package types defines the core data model shared by all Shiftgate packages.

The central type is DeploymentAttempt: the full record of one rollout
execution, from the moment it is requested until it reaches a terminal
status. The attempt carries its stage ladder, the thresholds it was judged
against, and enough outcome detail (per-stage verdicts, failure reason,
manual-intervention flag) to reconstruct why it ended where it did without
log archaeology.

# Lifecycle

	              ┌─────────────┐
	   request ──▶│ in-progress │
	              └──────┬──────┘
	         ┌───────────┼────────────┐
	         ▼           ▼            ▼
	   ┌───────────┐ ┌────────┐ ┌─────────────┐
	   │ succeeded │ │ failed │ │ rolled-back │
	   └───────────┘ └────────┘ └─────────────┘

An attempt is mutated only by the controller that owns it and becomes
immutable once its status is terminal. The record store persists it as a
single JSON object keyed by attempt ID; the JSON field names here are the
schema other tooling (dashboards, audit, notifications) consumes.

# Invariants

  - At most one stage is active at any time.
  - TrafficSplit percentages always sum to exactly 100.
  - StableRevision changes ownership only on a fully succeeded attempt.
  - Once TrafficShifted is false at a terminal status, no rollback ran.

# Usage

	attempt := &types.DeploymentAttempt{
		ID:                "prod-a1b2c3-7f3e",
		Service:           "checkout",
		Environment:       "prod",
		Strategy:          types.StrategyCanary,
		CandidateRevision: "checkout:v42",
		StableRevision:    "checkout:v41",
		Status:            types.AttemptInProgress,
		Thresholds:        types.DefaultThresholds(),
		CreatedAt:         time.Now(),
	}
*/
package types
