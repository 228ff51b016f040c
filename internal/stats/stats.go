package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds live counters for one benchmark run. Durations go into
// histograms for the progress views; final figures come from Summarize.
type Stats struct {
	Trials  uint64
	Success uint64
	Fail    uint64
	Results uint64

	// Query time of successful trials (microseconds)
	ServiceTime *SafeHistogram

	// Time a trial waited for an admission slot
	QueueWait *SafeHistogram
}

func NewStats() *Stats {
	return &Stats{
		ServiceTime: NewSafeHistogram(),
		QueueWait:   NewSafeHistogram(),
	}
}

func (s *Stats) AddSuccess(service, queueWait time.Duration, results int) {
	atomic.AddUint64(&s.Trials, 1)
	atomic.AddUint64(&s.Success, 1)
	atomic.AddUint64(&s.Results, uint64(results))

	s.ServiceTime.RecordDuration(service)
	s.QueueWait.RecordDuration(queueWait)
}

func (s *Stats) AddFailure(queueWait time.Duration) {
	atomic.AddUint64(&s.Trials, 1)
	atomic.AddUint64(&s.Fail, 1)

	s.QueueWait.RecordDuration(queueWait)
}

func (s *Stats) Succeeded() uint64 {
	return atomic.LoadUint64(&s.Success)
}

func (s *Stats) Failed() uint64 {
	return atomic.LoadUint64(&s.Fail)
}

func (s *Stats) Completed() uint64 {
	return atomic.LoadUint64(&s.Trials)
}

func (s *Stats) ErrorRate() float64 {
	done := atomic.LoadUint64(&s.Trials)
	if done == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return (float64(fails) / float64(done)) * 100
}

func (s *Stats) GetP50Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(50)) / 1000.0 // ms
}

func (s *Stats) GetP90Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(90)) / 1000.0 // ms
}

func (s *Stats) GetP99Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(99)) / 1000.0 // ms
}

// QueueWaitAvgMs is the mean time trials waited for a connection, in milliseconds.
func (s *Stats) QueueWaitAvgMs() float64 {
	return s.QueueWait.Mean() / 1000.0
}
