package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"graphbench/internal/concurrency"
)

type websitesEntry struct {
	IDs []string  `json:"ids"`
	At  time.Time `json:"at"`
}

// GetWebsites returns the cached website ids under key and when they were
// discovered.
func (s *Store) GetWebsites(key string) ([]string, time.Time, error) {
	data, err := s.get(BucketWebsites, key)
	if err != nil {
		return nil, time.Time{}, err
	}
	var e websitesEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, time.Time{}, fmt.Errorf("storage: decode websites: %w", err)
	}
	return e.IDs, e.At, nil
}

func (s *Store) PutWebsites(key string, ids []string, at time.Time) error {
	data, err := json.Marshal(websitesEntry{IDs: ids, At: at})
	if err != nil {
		return err
	}
	return s.put(BucketWebsites, key, data)
}

// Series is a cached concurrency reconstruction. Source identifies the
// results file it was computed from.
type Series struct {
	Source  string               `json:"source"`
	ModTime time.Time            `json:"mod_time"`
	Cadence time.Duration        `json:"cadence"`
	Samples []concurrency.Sample `json:"samples"`
}

// SeriesKey identifies the reconstruction of one query at one user count on
// one client instance.
func SeriesKey(query string, users int, instance string) string {
	return fmt.Sprintf("%s/%d/%s", query, users, instance)
}

func (s *Store) PutSeries(key string, series Series) error {
	data, err := json.Marshal(series)
	if err != nil {
		return err
	}
	return s.put(BucketConcurrency, key, data)
}

func (s *Store) GetSeries(key string) (*Series, error) {
	data, err := s.get(BucketConcurrency, key)
	if err != nil {
		return nil, err
	}
	var series Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("storage: decode series: %w", err)
	}
	return &series, nil
}
