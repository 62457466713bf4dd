// Package events provides an in-process pub/sub broker for rollout
// lifecycle events. The controller publishes an event at every state
// transition (started, candidate published, health gate passed, stage
// advanced, terminal outcome); subscribers such as the API server and
// the serve command's log tail consume them without coupling to the
// controller. Delivery is best-effort: a subscriber with a full buffer
// misses the event rather than blocking the rollout.
package events
