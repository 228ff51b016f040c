package stats

import (
	"errors"
	"math"
	"slices"
	"time"
)

// ErrNoSamples is returned by Summarize when there is nothing to describe.
var ErrNoSamples = errors.New("stats: no successful samples")

// Percentiles reported for every query.
var Percentiles = []float64{50, 90, 99, 99.9, 99.99}

type Percentile struct {
	P     float64
	Value time.Duration
}

// Summary describes the durations of the successful trials of one run.
type Summary struct {
	Count       int
	Mean        time.Duration
	Median      time.Duration
	Min         time.Duration
	Max         time.Duration
	Percentiles []Percentile
}

// Summarize computes exact statistics over durations. Percentiles use linear
// interpolation between the closest ranks.
func Summarize(durations []time.Duration) (Summary, error) {
	if len(durations) == 0 {
		return Summary{}, ErrNoSamples
	}

	sorted := make([]float64, len(durations))
	var sum float64
	for i, d := range durations {
		sorted[i] = float64(d)
		sum += float64(d)
	}
	slices.Sort(sorted)

	s := Summary{
		Count:  len(sorted),
		Mean:   toDuration(sum / float64(len(sorted))),
		Median: toDuration(percentile(sorted, 50)),
		Min:    toDuration(sorted[0]),
		Max:    toDuration(sorted[len(sorted)-1]),
	}
	for _, p := range Percentiles {
		s.Percentiles = append(s.Percentiles, Percentile{P: p, Value: toDuration(percentile(sorted, p))})
	}
	return s, nil
}

// At returns the value for percentile p if it was computed.
func (s Summary) At(p float64) (time.Duration, bool) {
	for _, v := range s.Percentiles {
		if v.P == p {
			return v.Value, true
		}
	}
	return 0, false
}

func percentile(sorted []float64, p float64) float64 {
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

func toDuration(ns float64) time.Duration {
	return time.Duration(math.Round(ns))
}
