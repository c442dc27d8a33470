package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const snapshotFile = "snapshots.db"

var snapshotBucket = []byte("snapshots")

// ErrSnapshotNotFound is returned by SnapshotStore.Get for unknown names.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is the last successful fetch of a resource.
type Snapshot struct {
	Resource  string    `json:"-"`
	Model     string    `json:"model"`
	FetchedAt time.Time `json:"fetched_at"`
	Body      []byte    `json:"body"`
}

// Recorder receives every successful fetch.
type Recorder interface {
	Record(name string, model DataModel, body []byte) error
}

// SnapshotStore keeps the latest fetched body per resource in a bbolt file.
type SnapshotStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenSnapshotStore opens or creates the store under dir.
func OpenSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory '%s': %w", dir, err)
	}

	db, err := bbolt.Open(filepath.Join(dir, snapshotFile), 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot bucket: %w", err)
	}

	return &SnapshotStore{db: db, now: time.Now}, nil
}

// Record stores body as the latest snapshot of name.
func (s *SnapshotStore) Record(name string, model DataModel, body []byte) error {
	value, err := json.Marshal(Snapshot{
		Model:     model.String(),
		FetchedAt: s.now().UTC(),
		Body:      body,
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put([]byte(name), value)
	})
}

// Get returns the snapshot stored for name.
func (s *SnapshotStore) Get(name string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(snapshotBucket).Get([]byte(name))
		if value == nil {
			return ErrSnapshotNotFound
		}
		snap = &Snapshot{Resource: name}
		return json.Unmarshal(value, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List returns all snapshots ordered by resource name, without bodies.
func (s *SnapshotStore) List() ([]Snapshot, error) {
	var out []Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotBucket).ForEach(func(k, v []byte) error {
			snap := Snapshot{Resource: string(k)}
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("snapshot %q: %w", k, err)
			}
			snap.Body = nil
			out = append(out, snap)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
