/*
Package target abstracts the platform hosting the service being rolled out.

The engine only ever talks to the platform through the Client interface:
query the current traffic split, publish a candidate revision at zero
traffic, atomically replace the traffic split, resolve service endpoints,
and retire a revision. Everything else about the platform's resource
model is out of the engine's sight.

Error taxonomy:

  - ErrTargetUnreachable: the platform API could not be queried; state is
    unknown, re-query before retrying
  - ErrPublish: the platform rejected the candidate configuration
  - ErrTrafficUpdate: the platform rejected a split; partial application
    must not be assumed

RESTClient is the bundled adapter for revision-based platforms exposing
an HTTP API. All calls carry an explicit per-request timeout so a hung
platform cannot stall a rollout indefinitely.
*/
package target
