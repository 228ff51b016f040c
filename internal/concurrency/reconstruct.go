// Package concurrency rebuilds, after a run, how many trials were in flight
// over time. A healthy run at concurrency W stays close to W for the whole
// steady-state window.
package concurrency

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// DefaultCadence is the bucket width of resampled series.
const DefaultCadence = 100 * time.Millisecond

var (
	ErrTooFewIntervals = errors.New("concurrency: fewer timed trials than the concurrency level")
	ErrEmptyWindow     = errors.New("concurrency: steady-state window is empty")
)

// Sample is the number of trials in flight at Timestamp. Raw samples hold
// whole counts; resampled ones hold bucket means.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Active    float64   `json:"active"`
}

type Config struct {
	// Concurrency is the width the run was configured with.
	Concurrency int
	// Cadence is the bucket width used by Resample.
	Cadence time.Duration
}

// Series reconstructs the in-flight counts of one run and resamples them to
// cfg.Cadence.
func Series(ivs []Interval, cfg Config) ([]Sample, error) {
	raw, err := Reconstruct(ivs, cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	cadence := cfg.Cadence
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return Resample(raw, cadence), nil
}

// Reconstruct samples the in-flight count across the steady-state window of a
// run. The window opens at the concurrency-th earliest start and closes at the
// concurrency-th latest end, which cuts off ramp-up and drain. The step is a
// tenth of the shortest trial, rounded up to whole milliseconds.
func Reconstruct(ivs []Interval, concurrency int) ([]Sample, error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency: level must be at least 1, got %d", concurrency)
	}

	tree := NewTree(ivs)
	if tree.Len() < concurrency {
		return nil, fmt.Errorf("%w: %d timed trials, concurrency %d", ErrTooFewIntervals, tree.Len(), concurrency)
	}

	starts := make([]int64, 0, tree.Len())
	ends := make([]int64, 0, tree.Len())
	minDur := int64(math.MaxInt64)
	for _, iv := range tree.ivs {
		starts = append(starts, iv.Start)
		ends = append(ends, iv.End)
		minDur = min(minDur, iv.End-iv.Start)
	}
	slices.Sort(starts)
	slices.Sort(ends)

	from := starts[concurrency-1]
	to := ends[len(ends)-concurrency]
	if to <= from {
		return nil, ErrEmptyWindow
	}

	step := samplingStep(time.Duration(minDur))

	var samples []Sample
	for t := from; t+step <= to; t += step {
		samples = append(samples, Sample{
			Timestamp: time.Unix(0, t).UTC(),
			Active:    float64(tree.CountOverlap(t, t+step)),
		})
	}
	if len(samples) == 0 {
		return nil, ErrEmptyWindow
	}
	return samples, nil
}

func samplingStep(minDur time.Duration) int64 {
	stepMs := math.Ceil(float64(minDur) / float64(time.Millisecond) / 10)
	if stepMs < 1 {
		stepMs = 1
	}
	return int64(stepMs) * int64(time.Millisecond)
}

// Resample averages samples into buckets of width cadence aligned to the
// epoch. Buckets without samples repeat the previous bucket's value.
func Resample(samples []Sample, cadence time.Duration) []Sample {
	if len(samples) == 0 {
		return nil
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}

	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b Sample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	first := sorted[0].Timestamp.Truncate(cadence)
	last := sorted[len(sorted)-1].Timestamp.Truncate(cadence)
	buckets := int(last.Sub(first)/cadence) + 1

	sums := make([]float64, buckets)
	counts := make([]int, buckets)
	for _, s := range sorted {
		idx := int(s.Timestamp.Truncate(cadence).Sub(first) / cadence)
		sums[idx] += s.Active
		counts[idx]++
	}

	out := make([]Sample, buckets)
	var prev float64
	for i := range out {
		v := prev
		if counts[i] > 0 {
			v = sums[i] / float64(counts[i])
		}
		out[i] = Sample{Timestamp: first.Add(time.Duration(i) * cadence).UTC(), Active: v}
		prev = v
	}
	return out
}
