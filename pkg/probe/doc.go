/*
Package probe provides synthetic health checks against service revisions.

A prober performs exactly one attempt per call with one timeout and never
returns an error: every failure mode (timeout, connection refused,
non-2xx response) is encoded as Success=false in the returned Sample.
This keeps probing side-effect-free with respect to control flow, so the
sampling loops built on top (the performance monitor's window, the health
gate, the rollback confirmation) are never interrupted by a single bad
probe. Retry cadence is always the caller's responsibility.

# Checkers

	┌──────────────────────────────────────┐
	│          Checker interface           │
	│  Check(ctx) Sample                   │
	│  Kind() Kind                         │
	└──────┬────────────────────┬──────────┘
	       ▼                    ▼
	  ┌─────────┐          ┌─────────┐
	  │  HTTP   │          │  TCP    │
	  │ Checker │          │ Checker │
	  └─────────┘          └─────────┘
	   GET /healthz        connect :port

HTTP probes check a status-code range (2xx by default); TCP probes only
verify the port accepts connections. Both record latency, which the
performance monitor aggregates for successful samples.

# Bounded retries

Await wraps a checker in a fixed-attempt retry loop with fixed backoff,
used for the pre-traffic health gate and for rollback confirmation:

	sample, err := probe.Await(ctx, probe.NewHTTPChecker(url), 10, 3*time.Second)
	if errors.Is(err, probe.ErrExhausted) {
		// candidate never came up
	}

Await terminates deterministically and observes cancellation between
attempts and during backoff.
*/
package probe
