// Package history keeps a local record of finished runs in a bbolt database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"

	"github.com/cloudcostguard/estimate-load/internal/metrics"
)

const bucketRuns = "runs"

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Verdict is the outcome of one threshold.
type Verdict struct {
	Expression string  `json:"expression"`
	Actual     float64 `json:"actual"`
	Pass       bool    `json:"pass"`
}

// Record summarises one run.
type Record struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	Target     string        `json:"target"`
	Stages     []string      `json:"stages"`
	Stats      metrics.Stats `json:"stats"`
	Thresholds []Verdict     `json:"thresholds,omitempty"`
	Passed     bool          `json:"passed"`
	Cancelled  bool          `json:"cancelled,omitempty"`
}

type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewID returns a time-ordered run id.
func NewID() string {
	return ulid.Make().String()
}

// Save stores rec, assigning an id when it has none, and returns the id.
func (s *Store) Save(rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode run: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRuns)).Put([]byte(rec.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return rec.ID, nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (s *Store) List(limit int) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Get returns the run with the given id.
func (s *Store) Get(id string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	return rec, err
}
