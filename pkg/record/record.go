package record

import (
	"errors"

	"github.com/shiftgate/shiftgate/pkg/types"
)

// ErrNotFound indicates no attempt record exists for the given id
var ErrNotFound = errors.New("attempt record not found")

// Store persists rollout attempt records for audit and post-hoc
// inspection. Saves for the same id overwrite earlier ones: the store
// holds the latest known state of each attempt, not an append log.
// Concurrent saves for different ids must not corrupt unrelated records.
type Store interface {
	// Save persists the full attempt keyed by attempt.ID
	Save(attempt *types.DeploymentAttempt) error

	// Load returns the latest persisted state of an attempt
	Load(id string) (*types.DeploymentAttempt, error)

	// List returns all persisted attempts
	List() ([]*types.DeploymentAttempt, error)

	// Close releases the underlying storage
	Close() error
}
