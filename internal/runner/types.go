package runner

import (
	"context"
	"time"

	"graphbench/internal/concurrency"
)

// DefaultTrialTimeout bounds a single query invocation.
const DefaultTrialTimeout = 60 * time.Second

type Config struct {
	// Query names the benchmarked query in logs and records.
	Query        string        `json:"query"`
	Samples      int           `json:"samples"`
	Concurrency  int           `json:"concurrency"`
	TrialTimeout time.Duration `json:"trial_timeout"`
}

// Handles lends out the remote handles trials run against.
type Handles[H comparable] interface {
	Acquire(ctx context.Context) (H, error)
	Release(h H) error
}

// Query runs one invocation against h and returns the drained results.
type Query[H any] func(ctx context.Context, h H, args map[string]any) ([]any, error)

// RemoteError is implemented by errors reported by the remote side. They fail
// a single trial instead of the run.
type RemoteError interface {
	Remote() bool
}

// Observer is told about every trial. Inflight brackets each query call;
// TrialFinished is called once per recorded trial.
type Observer interface {
	Inflight(delta int)
	TrialFinished(outcome Outcome, d time.Duration)
}

type Outcome int

const (
	Success Outcome = iota
	QueryFailure
	AcquisitionFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case QueryFailure:
		return "query_failure"
	case AcquisitionFailure:
		return "acquisition_failure"
	}
	return "unknown"
}

// TrialRecord is the result of one trial. Only successful trials carry
// timing.
type TrialRecord struct {
	Index    int           `json:"index"`
	Outcome  Outcome       `json:"outcome"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Results  int           `json:"results"`
	Err      string        `json:"error,omitempty"`
}

func (r TrialRecord) Timed() bool {
	return r.Outcome == Success
}

// BenchmarkRun holds the records of one run in completion order.
type BenchmarkRun struct {
	Config   Config        `json:"config"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Records  []TrialRecord `json:"records"`
}

func (b *BenchmarkRun) Succeeded() int {
	return b.count(Success)
}

// Failed counts query and acquisition failures.
func (b *BenchmarkRun) Failed() int {
	return len(b.Records) - b.count(Success)
}

func (b *BenchmarkRun) count(o Outcome) int {
	n := 0
	for _, r := range b.Records {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Timed returns the successful records.
func (b *BenchmarkRun) Timed() []TrialRecord {
	var out []TrialRecord
	for _, r := range b.Records {
		if r.Timed() {
			out = append(out, r)
		}
	}
	return out
}

func (b *BenchmarkRun) Durations() []time.Duration {
	var out []time.Duration
	for _, r := range b.Records {
		if r.Timed() {
			out = append(out, r.Duration)
		}
	}
	return out
}

func (b *BenchmarkRun) Intervals() []concurrency.Interval {
	var out []concurrency.Interval
	for _, r := range b.Records {
		if r.Timed() {
			out = append(out, concurrency.NewInterval(r.Start, r.End))
		}
	}
	return out
}

func (b *BenchmarkRun) Elapsed() time.Duration {
	return b.Finished.Sub(b.Started)
}
