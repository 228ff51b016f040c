package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphbench/internal/pool"
)

type conn struct{ id int }

type connFactory struct{ n atomic.Int32 }

func (f *connFactory) Open(context.Context) (*conn, error) {
	return &conn{id: int(f.n.Add(1))}, nil
}

func (f *connFactory) Close(*conn) error { return nil }

func newPool(t *testing.T, size int) *pool.Pool[*conn] {
	t.Helper()
	p, err := pool.New[*conn](context.Background(), size, &connFactory{},
		pool.WithRetries(5), pool.WithAttemptWait(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown() })
	return p
}

var oneArg = []map[string]any{{"transient_id": "t-1"}}

type remoteErr struct{}

func (remoteErr) Error() string { return "server said no" }
func (remoteErr) Remote() bool  { return true }

type countingObserver struct {
	mu       sync.Mutex
	inflight int
	outcomes map[Outcome]int
}

func (o *countingObserver) Inflight(d int) {
	o.mu.Lock()
	o.inflight += d
	o.mu.Unlock()
}

func (o *countingObserver) TrialFinished(out Outcome, _ time.Duration) {
	o.mu.Lock()
	if o.outcomes == nil {
		o.outcomes = map[Outcome]int{}
	}
	o.outcomes[out]++
	o.mu.Unlock()
}

func TestRunAllHappyPath(t *testing.T) {
	p := newPool(t, 3)

	var cur, peak atomic.Int32
	query := func(ctx context.Context, c *conn, args map[string]any) ([]any, error) {
		n := cur.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		cur.Add(-1)
		return []any{"u-1", "u-2"}, nil
	}

	obs := &countingObserver{}
	r, err := New[*conn](Config{Query: "q", Samples: 10, Concurrency: 3}, p, query, oneArg, WithObserver(obs))
	require.NoError(t, err)

	run, err := r.RunAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, run.Records, 10)
	assert.Equal(t, 10, run.Succeeded())
	assert.Equal(t, 0, run.Failed())
	assert.Len(t, run.Durations(), 10)
	assert.Len(t, run.Intervals(), 10)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, uint64(20), r.Stats.Results)

	for _, rec := range run.Records {
		assert.Equal(t, Success, rec.Outcome)
		assert.False(t, rec.End.Before(rec.Start))
		assert.Equal(t, rec.End.Sub(rec.Start), rec.Duration)
	}

	st := p.Stats()
	assert.Equal(t, 3, st.Available)
	assert.Equal(t, 0, st.Active)

	assert.Equal(t, 0, obs.inflight)
	assert.Equal(t, 10, obs.outcomes[Success])
}

func TestRunAllRespectsConcurrencyBelowPoolSize(t *testing.T) {
	p := newPool(t, 5)

	var cur, peak atomic.Int32
	query := func(ctx context.Context, c *conn, args map[string]any) ([]any, error) {
		n := cur.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		cur.Add(-1)
		return nil, nil
	}

	r, err := New[*conn](Config{Samples: 20, Concurrency: 2}, p, query, oneArg)
	require.NoError(t, err)
	_, err = r.RunAll(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunAllWhenPoolAlwaysBusy(t *testing.T) {
	p := newPool(t, 2)
	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)

	var calls atomic.Int32
	query := func(ctx context.Context, c *conn, args map[string]any) ([]any, error) {
		calls.Add(1)
		return nil, nil
	}

	r, err := New[*conn](Config{Samples: 5, Concurrency: 5}, p, query, oneArg)
	require.NoError(t, err)
	run, err := r.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, run.Succeeded())
	assert.Equal(t, 5, run.Failed())
	for _, rec := range run.Records {
		assert.Equal(t, AcquisitionFailure, rec.Outcome)
		assert.False(t, rec.Timed())
	}
	assert.Empty(t, run.Durations())
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, p.Release(a))
	require.NoError(t, p.Release(b))
	assert.Equal(t, 2, p.Stats().Available)
}

func TestRunAllZeroSamples(t *testing.T) {
	r, err := New[*conn](Config{Samples: 0, Concurrency: 4}, newPool(t, 1),
		func(context.Context, *conn, map[string]any) ([]any, error) {
			t.Fatal("query must not run")
			return nil, nil
		}, oneArg)
	require.NoError(t, err)

	run, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, run.Records)
	assert.Equal(t, 0, run.Succeeded())
	assert.Equal(t, 0, run.Failed())
}

func TestRunAllRecordsRemoteFailures(t *testing.T) {
	p := newPool(t, 2)
	query := func(ctx context.Context, c *conn, args map[string]any) ([]any, error) {
		if args["n"].(int)%2 == 0 {
			return nil, remoteErr{}
		}
		return []any{1}, nil
	}
	args := []map[string]any{{"n": 0}, {"n": 1}}

	r, err := New[*conn](Config{Samples: 10, Concurrency: 2}, p, query, args)
	require.NoError(t, err)
	run, err := r.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, run.Succeeded())
	assert.Equal(t, 5, run.Failed())
	for _, rec := range run.Records {
		if rec.Index%2 == 0 {
			assert.Equal(t, QueryFailure, rec.Outcome)
			assert.Equal(t, "server said no", rec.Err)
			assert.True(t, rec.Start.IsZero())
		} else {
			assert.Equal(t, Success, rec.Outcome)
		}
	}
	assert.Equal(t, 2, p.Stats().Available)
}

func TestRunAllWhenServerAlwaysFails(t *testing.T) {
	p := newPool(t, 2)
	var calls atomic.Int32
	query := func(ctx context.Context, c *conn, args map[string]any) ([]any, error) {
		calls.Add(1)
		return nil, remoteErr{}
	}

	r, err := New[*conn](Config{Samples: 5, Concurrency: 5}, p, query, oneArg)
	require.NoError(t, err)
	run, err := r.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, run.Succeeded())
	assert.Equal(t, 5, run.Failed())
	assert.Equal(t, int32(5), calls.Load())
	for _, rec := range run.Records {
		assert.Equal(t, QueryFailure, rec.Outcome)
		assert.Equal(t, "server said no", rec.Err)
	}
	assert.Empty(t, run.Durations())
	assert.Equal(t, 2, p.Stats().Available)
	assert.Equal(t, 0, p.Stats().Active)
}

func TestRunAllTrialTimeoutIsAQueryFailure(t *testing.T) {
	p := newPool(t, 1)
	query := func(ctx context.Context, c *conn, args map[string]any) ([]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	r, err := New[*conn](Config{Samples: 2, Concurrency: 1, TrialTimeout: 10 * time.Millisecond}, p, query, oneArg)
	require.NoError(t, err)
	run, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.Failed())
	for _, rec := range run.Records {
		assert.Equal(t, QueryFailure, rec.Outcome)
	}
}

func TestRunAllAbortsOnFatalError(t *testing.T) {
	p := newPool(t, 1)
	broken := errors.New("protocol violation")

	var calls atomic.Int32
	query := func(ctx context.Context, c *conn, args map[string]any) ([]any, error) {
		if calls.Add(1) == 4 {
			return nil, broken
		}
		return nil, nil
	}

	r, err := New[*conn](Config{Samples: 100, Concurrency: 1}, p, query, oneArg)
	require.NoError(t, err)
	run, err := r.RunAll(context.Background())
	require.ErrorIs(t, err, broken)
	assert.Nil(t, run)
	assert.Less(t, calls.Load(), int32(10))

	st := p.Stats()
	assert.Equal(t, 1, st.Available)
	assert.Equal(t, 0, st.Active)
}

func TestRunAllStopsWhenCancelled(t *testing.T) {
	p := newPool(t, 2)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	query := func(qctx context.Context, c *conn, args map[string]any) ([]any, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		<-qctx.Done()
		return nil, qctx.Err()
	}

	r, err := New[*conn](Config{Samples: 50, Concurrency: 2}, p, query, oneArg)
	require.NoError(t, err)
	_, err = r.RunAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, p.Stats().Available)
}

func TestArgumentsCycleByIndex(t *testing.T) {
	p := newPool(t, 1)
	args := []map[string]any{{"n": 0}, {"n": 1}, {"n": 2}}

	var mu sync.Mutex
	seen := map[int]int{}
	var next atomic.Int32
	query := func(ctx context.Context, c *conn, a map[string]any) ([]any, error) {
		mu.Lock()
		seen[int(next.Add(1))-1] = a["n"].(int)
		mu.Unlock()
		return nil, nil
	}

	// one slot, so trials run in index order
	r, err := New[*conn](Config{Samples: 7, Concurrency: 1}, p, query, args)
	require.NoError(t, err)
	_, err = r.RunAll(context.Background())
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		assert.Equal(t, i%3, seen[i], "trial %d", i)
	}
}

func TestFinalSnapshotIsPublished(t *testing.T) {
	updates := make(StatsUpdateChan, 1)
	r, err := New[*conn](Config{Query: "q", Samples: 3, Concurrency: 1}, newPool(t, 1),
		func(context.Context, *conn, map[string]any) ([]any, error) { return nil, nil },
		oneArg, WithUpdates(updates))
	require.NoError(t, err)

	_, err = r.RunAll(context.Background())
	require.NoError(t, err)

	select {
	case s := <-updates:
		assert.Equal(t, "q", s.Query)
		assert.Equal(t, uint64(3), s.Completed)
		assert.Equal(t, uint64(3), s.Success)
		assert.Equal(t, int64(0), s.Inflight)
	default:
		t.Fatal("no snapshot published")
	}
}

func TestNewValidates(t *testing.T) {
	p := newPool(t, 1)
	q := func(context.Context, *conn, map[string]any) ([]any, error) { return nil, nil }

	_, err := New[*conn](Config{Samples: 1, Concurrency: 0}, p, q, oneArg)
	assert.Error(t, err)
	_, err = New[*conn](Config{Samples: -1, Concurrency: 1}, p, q, oneArg)
	assert.Error(t, err)
	_, err = New[*conn](Config{Samples: 1, Concurrency: 1}, p, q, nil)
	assert.Error(t, err)

	r, err := New[*conn](Config{Samples: 1, Concurrency: 1}, p, q, oneArg)
	require.NoError(t, err)
	assert.Equal(t, DefaultTrialTimeout, r.Cfg.TrialTimeout)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "query_failure", QueryFailure.String())
	assert.Equal(t, "acquisition_failure", AcquisitionFailure.String())
}
