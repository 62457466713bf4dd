/*
Package metrics exposes Prometheus instrumentation and process health
endpoints for the rollout engine.

Collectors cover the three things operators page on: rollout outcomes
(shiftgate_rollouts_total by strategy and terminal status), the failure
path (shiftgate_rollbacks_total, shiftgate_threshold_breaches_total,
shiftgate_health_gate_failures_total), and timing
(shiftgate_rollout_duration_seconds, shiftgate_stage_duration_seconds).
All collectors are registered with the default registry at package init;
Handler() serves them on /metrics.

The package also carries a small component-health registry backing
/healthz and /readyz. Components report in via RegisterComponent /
UpdateComponent; readiness requires the record store and the engine
registry to have reported healthy.
*/
package metrics
