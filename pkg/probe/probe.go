package probe

import (
	"context"
	"errors"
	"time"
)

// Kind represents the type of synthetic check
type Kind string

const (
	KindHTTP Kind = "http"
	KindTCP  Kind = "tcp"
)

// Sample is the outcome of one synthetic check. A probe never returns an
// error: timeouts, refused connections and bad status codes are all
// encoded as Success=false so a caller's sampling loop is never
// interrupted by a single bad probe.
type Sample struct {
	Success   bool
	Message   string
	CheckedAt time.Time
	Latency   time.Duration
}

// LatencyMillis returns the probe latency in milliseconds
func (s Sample) LatencyMillis() float64 {
	return float64(s.Latency) / float64(time.Millisecond)
}

// Checker is the interface all probers implement. Check performs exactly
// one attempt with one timeout; retry cadence belongs to the caller.
type Checker interface {
	// Check performs one synthetic check and returns the sample
	Check(ctx context.Context) Sample

	// Kind returns the type of check
	Kind() Kind
}

// ErrExhausted is returned by Await when every attempt failed. Callers
// distinguish "never came up" (this error) from "came up then regressed"
// (a later threshold breach) by which loop surfaced the failure.
var ErrExhausted = errors.New("probe attempts exhausted")

// Await runs the checker up to attempts times with a fixed backoff
// between tries, returning the first healthy sample. Cancellation is
// observed both mid-backoff and before each attempt.
func Await(ctx context.Context, checker Checker, attempts int, backoff time.Duration) (Sample, error) {
	var last Sample
	for i := 0; i < attempts; i++ {
		if i > 0 && backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return last, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return last, err
		}

		last = checker.Check(ctx)
		if last.Success {
			return last, nil
		}
	}
	return last, ErrExhausted
}
