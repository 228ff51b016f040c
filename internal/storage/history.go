package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"graphbench/internal/runner"
)

// RunSummary is what history keeps of one benchmarked query.
type RunSummary struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Endpoint  string        `json:"endpoint"`
	Config    runner.Config `json:"config"`

	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
	MeanMs    float64       `json:"mean_ms"`
	MedianMs  float64       `json:"median_ms"`
	P99Ms     float64       `json:"p99_ms"`
	MaxMs     float64       `json:"max_ms"`
}

// runKey sorts runs by time so a reverse cursor walk lists newest first.
func runKey(r RunSummary) string {
	return fmt.Sprintf("%020d-%s", r.Timestamp.UnixNano(), r.ID)
}

// SaveRun stores r, assigning an ID and timestamp when missing.
func (s *Store) SaveRun(r *RunSummary) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("storage: encode run: %w", err)
	}
	return s.put(BucketRuns, runKey(*r), data)
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	var items []RunSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item RunSummary
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("storage: decode run %s: %w", k, err)
			}
			items = append(items, item)
			if limit > 0 && len(items) == limit {
				break
			}
		}
		return nil
	})
	return items, err
}

func (s *Store) GetRun(id string) (*RunSummary, error) {
	suffix := []byte("-" + id)
	var item *RunSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if !bytes.HasSuffix(k, suffix) {
				continue
			}
			item = &RunSummary{}
			return json.Unmarshal(v, item)
		}
		return fmt.Errorf("run %q: %w", id, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
