// Package record persists rollout attempt records in an embedded BoltDB
// database, one JSON object per attempt id. The persisted JSON is the
// structured artifact downstream tooling (dashboards, notifications,
// audit) consumes; the controller itself holds authoritative in-memory
// state during a run and only writes here at creation and at terminal
// transitions.
package record
