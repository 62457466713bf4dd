/*
Package monitor implements the performance gate between rollout stages.

A Run call probes the aggregate service endpoint every sample interval
for the duration of the monitoring window, then reduces the samples to a
single Verdict:

	error rate   = failed samples / all samples × 100
	avg latency  = mean over successful samples only
	within       = error rate ≤ max AND avg latency ≤ max (inclusive)

A failed probe contributes to the error-rate denominator but never to the
latency average, so timeout durations are not conflated with real
latency. A window that collected zero samples is treated as a breach.

The window is cancellable: the sampler checks the context at every tick,
so an operator abort during a five-minute soak takes effect within one
sample interval rather than after the full window.
*/
package monitor
