package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsCounters(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%4 == 0 {
				s.AddFailure(time.Millisecond)
				return
			}
			s.AddSuccess(time.Duration(i+1)*time.Millisecond, 0, 3)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(40), s.Completed())
	assert.Equal(t, uint64(30), s.Succeeded())
	assert.Equal(t, uint64(10), s.Failed())
	assert.Equal(t, uint64(90), s.Results)
	assert.InDelta(t, 25.0, s.ErrorRate(), 1e-9)
}

func TestServicePercentiles(t *testing.T) {
	s := NewStats()
	for i := 1; i <= 100; i++ {
		s.AddSuccess(time.Duration(i)*time.Millisecond, 0, 0)
	}
	assert.InDelta(t, 50, s.GetP50Service(), 0.1)
	assert.InDelta(t, 90, s.GetP90Service(), 0.1)
	assert.InDelta(t, 99, s.GetP99Service(), 0.1)
	assert.Equal(t, int64(100_000), s.ServiceTime.Max()/1000*1000)
}

func TestRecordDurationClamps(t *testing.T) {
	h := NewSafeHistogram()
	assert.NoError(t, h.RecordDuration(0))
	assert.NoError(t, h.RecordDuration(time.Hour))
	assert.Equal(t, int64(1), h.ValueAtQuantile(50))
	assert.InDelta(t, float64(maxTrackable/time.Microsecond), float64(h.Max()), float64(maxTrackable/time.Microsecond)/500)
}

func TestEmptyStats(t *testing.T) {
	s := NewStats()
	assert.Zero(t, s.ErrorRate())
	assert.Zero(t, s.QueueWaitAvgMs())
}

func TestStatsRecordsHistograms(t *testing.T) {
	s := NewStats()
	s.AddSuccess(ms(10), 0, 3)
	s.AddSuccess(ms(20), ms(1), 2)
	s.AddFailure(ms(2))

	assert.Equal(t, uint64(3), s.Completed())
	assert.Equal(t, uint64(2), s.Succeeded())
	assert.Equal(t, uint64(1), s.Failed())
	assert.Equal(t, uint64(5), s.Results)
	assert.InDelta(t, 33.33, s.ErrorRate(), 0.01)
	assert.Equal(t, int64(2), s.ServiceTime.TotalCount())
	assert.Equal(t, int64(3), s.QueueWait.TotalCount())
	assert.InDelta(t, 20.0, s.GetP99Service(), 0.05)
}
