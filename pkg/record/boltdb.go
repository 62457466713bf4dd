package record

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/shiftgate/shiftgate/pkg/types"
)

var bucketAttempts = []byte("attempts")

// BoltStore implements Store using BoltDB. Bolt serializes writes, so
// concurrent Save calls for different attempt ids are safe by
// construction.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the record database in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "shiftgate.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAttempts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Save persists the attempt, overwriting any earlier record for the id
func (s *BoltStore) Save(attempt *types.DeploymentAttempt) error {
	if attempt.ID == "" {
		return fmt.Errorf("attempt id is empty")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		data, err := json.Marshal(attempt)
		if err != nil {
			return err
		}
		return b.Put([]byte(attempt.ID), data)
	})
}

// Load returns the latest persisted state of an attempt
func (s *BoltStore) Load(id string) (*types.DeploymentAttempt, error) {
	var attempt types.DeploymentAttempt
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &attempt)
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// List returns all persisted attempts
func (s *BoltStore) List() ([]*types.DeploymentAttempt, error) {
	var attempts []*types.DeploymentAttempt
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		return b.ForEach(func(k, v []byte) error {
			var attempt types.DeploymentAttempt
			if err := json.Unmarshal(v, &attempt); err != nil {
				return err
			}
			attempts = append(attempts, &attempt)
			return nil
		})
	})
	return attempts, err
}
