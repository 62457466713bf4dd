// Package controller executes rollout attempts and owns their lifecycle.
//
// A Controller runs exactly one attempt as a linear state machine:
//
//	Created ──► CandidatePublished ──► HealthGatePassed ──► StageActive(0..n)
//	                                                              │
//	                        ┌─────────────────────────────────────┤
//	                        ▼                                     ▼
//	                   RollingBack ◄──────────────────────── Finalizing
//	                        │                                     │
//	              RolledBack / Failed                         Succeeded
//
// Failures before any traffic shift terminate as Failed with no
// rollback: there is nothing live to revert. Failures after a shift
// always route through the rollback coordinator, on a context detached
// from the attempt's so an operator abort cannot cancel its own revert.
//
// The Engine sits above controllers: it registers one cancel function
// per running attempt, delivers aborts through it, enforces one attempt
// per service at a time, and drains everything on shutdown.
package controller
