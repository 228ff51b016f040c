package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const maxTrackable = 10 * time.Minute

// SafeHistogram guards an hdrhistogram with a mutex so trials can record concurrently.
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	// microseconds, up to ten minutes
	h := hdrhistogram.New(1, int64(maxTrackable/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// RecordDuration records d in microseconds, clamped to the trackable range.
func (h *SafeHistogram) RecordDuration(d time.Duration) error {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if limit := int64(maxTrackable / time.Microsecond); us > limit {
		us = limit
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.RecordValue(us)
}

// ValueAtQuantile returns the value in microseconds at percentile q (0-100).
func (h *SafeHistogram) ValueAtQuantile(q float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.ValueAtQuantile(q)
}

func (h *SafeHistogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean()
}

func (h *SafeHistogram) Max() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Max()
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}
