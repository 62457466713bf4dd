// Package targettest provides an in-memory target.Client for tests.
package targettest

import (
	"context"
	"sync"

	"github.com/shiftgate/shiftgate/pkg/target"
	"github.com/shiftgate/shiftgate/pkg/types"
)

// FakeClient is an in-memory deployment target. All mutations are
// recorded so tests can assert on call order and counts.
type FakeClient struct {
	mu sync.Mutex

	// Traffic is the current split, replaced by ShiftTraffic
	Traffic types.TrafficSplit

	// Published and Retired record revision lifecycle calls in order
	Published []string
	Retired   []string

	// Shifts records every accepted ShiftTraffic argument in order
	Shifts []types.TrafficSplit

	// AggregateURL is returned by ServiceEndpoint with a nil handle;
	// PinnedURL is the revision-pinned endpoint handed out on publish
	AggregateURL string
	PinnedURL    string

	// Error injection. A non-nil value makes the corresponding call fail.
	TrafficErr  error
	PublishErr  error
	ShiftErr    error
	EndpointErr error
	RetireErr   error

	// FailShiftAt makes the Nth ShiftTraffic call (1-based) fail with
	// ShiftErr while earlier and later calls succeed
	FailShiftAt int

	shiftCalls int
}

var _ target.Client = (*FakeClient)(nil)

// CurrentTraffic returns the recorded split
func (f *FakeClient) CurrentTraffic(ctx context.Context) (types.TrafficSplit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TrafficErr != nil {
		return nil, f.TrafficErr
	}
	split := make(types.TrafficSplit, len(f.Traffic))
	for revision, percent := range f.Traffic {
		split[revision] = percent
	}
	return split, nil
}

// PublishCandidate records the publish and returns a pinned handle
func (f *FakeClient) PublishCandidate(ctx context.Context, revision string, meta target.Metadata) (*target.RevisionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return nil, f.PublishErr
	}
	f.Published = append(f.Published, revision)
	return &target.RevisionHandle{Revision: revision, URL: f.PinnedURL}, nil
}

// ShiftTraffic validates and applies the split
func (f *FakeClient) ShiftTraffic(ctx context.Context, split types.TrafficSplit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shiftCalls++
	if f.ShiftErr != nil && (f.FailShiftAt == 0 || f.FailShiftAt == f.shiftCalls) {
		return f.ShiftErr
	}
	if err := split.Validate(); err != nil {
		return err
	}
	f.Traffic = split
	f.Shifts = append(f.Shifts, split)
	return nil
}

// ServiceEndpoint returns the aggregate or pinned URL
func (f *FakeClient) ServiceEndpoint(ctx context.Context, handle *target.RevisionHandle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EndpointErr != nil {
		return "", f.EndpointErr
	}
	if handle != nil && handle.URL != "" {
		return handle.URL, nil
	}
	return f.AggregateURL, nil
}

// Retire records the teardown
func (f *FakeClient) Retire(ctx context.Context, revision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RetireErr != nil {
		return f.RetireErr
	}
	f.Retired = append(f.Retired, revision)
	return nil
}

// ShiftCount returns how many ShiftTraffic calls were attempted,
// including failed ones
func (f *FakeClient) ShiftCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shiftCalls
}
