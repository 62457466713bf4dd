package target

import (
	"context"
	"errors"

	"github.com/shiftgate/shiftgate/pkg/types"
)

var (
	// ErrTargetUnreachable indicates the platform API could not be
	// queried. Callers treat the platform state as unknown and re-query
	// before retrying.
	ErrTargetUnreachable = errors.New("deployment target unreachable")

	// ErrPublish indicates the platform rejected the candidate
	// configuration
	ErrPublish = errors.New("candidate publish rejected")

	// ErrTrafficUpdate indicates the platform rejected a traffic split.
	// Partial application must not be assumed.
	ErrTrafficUpdate = errors.New("traffic update rejected")
)

// Metadata accompanies a candidate revision when it is published
type Metadata struct {
	Environment string            `json:"environment"`
	ImageDigest string            `json:"imageDigest,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// RevisionHandle identifies a published revision together with its
// revision-pinned endpoint, used to probe the candidate in isolation
// before it receives any real traffic.
type RevisionHandle struct {
	Revision string `json:"revision"`
	URL      string `json:"url"`
}

// Client is the abstract interface to the platform hosting the service.
// The engine is agnostic to whether the platform is a serverless revision
// system, a container orchestrator, or a VM-based load balancer.
type Client interface {
	// CurrentTraffic returns the live traffic split across revisions
	CurrentTraffic(ctx context.Context) (types.TrafficSplit, error)

	// PublishCandidate deploys the revision with zero traffic
	PublishCandidate(ctx context.Context, revision string, meta Metadata) (*RevisionHandle, error)

	// ShiftTraffic atomically replaces the full traffic split
	ShiftTraffic(ctx context.Context, split types.TrafficSplit) error

	// ServiceEndpoint returns the aggregate endpoint, or the
	// revision-pinned endpoint when a handle is supplied
	ServiceEndpoint(ctx context.Context, handle *RevisionHandle) (string, error)

	// Retire removes a revision from the platform. Used by the recreate
	// strategy to tear down the stable revision before publishing.
	Retire(ctx context.Context, revision string) error
}
