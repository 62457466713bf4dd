// Package api exposes the rollout engine over HTTP.
//
// The surface is deliberately small: start a rollout, inspect or list
// attempts, abort a running one, and stream lifecycle events. Liveness,
// readiness and Prometheus metrics ride on the same listener.
//
//	POST /v1/rollouts            start a rollout, returns 202 + attempt id
//	GET  /v1/rollouts            list persisted attempts
//	GET  /v1/rollouts/:id        attempt record + running flag
//	POST /v1/rollouts/:id/abort  request abort, returns 202
//	GET  /v1/events              server-sent event stream
//	GET  /healthz /readyz /metrics
package api
