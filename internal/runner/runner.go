// Package runner issues a fixed number of query trials against pooled
// handles under a concurrency bound.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"graphbench/internal/pool"
	"graphbench/internal/stats"
)

const logResultLimit = 100

// StatsSnapshot is the progress of a run at one tick.
type StatsSnapshot struct {
	Query     string
	Samples   int
	Completed uint64
	Success   uint64
	Fail      uint64
	Inflight  int64
	ErrorRate float64

	// service time of successful trials so far
	P50ServiceMs float64
	P90ServiceMs float64
	P99ServiceMs float64
	MaxServiceMs int64

	AvgQueueWaitMs float64
}

// StatsUpdateChan carries snapshots to a progress view.
type StatsUpdateChan chan StatsSnapshot

type Option func(*settings)

type settings struct {
	logger   *zap.Logger
	observer Observer
	updates  StatsUpdateChan
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func WithObserver(o Observer) Option {
	return func(s *settings) { s.observer = o }
}

// WithUpdates makes the tick loop publish snapshots on ch.
func WithUpdates(ch StatsUpdateChan) Option {
	return func(s *settings) { s.updates = ch }
}

type Runner[H comparable] struct {
	Cfg     Config
	Stats   *stats.Stats
	Updates StatsUpdateChan

	handles  Handles[H]
	query    Query[H]
	args     []map[string]any
	logger   *zap.Logger
	observer Observer

	inflight   atomic.Int64
	checkpoint uint64
}

// New builds a runner for one query. args must not be empty; trial i runs
// with args[i % len(args)].
func New[H comparable](cfg Config, handles Handles[H], query Query[H], args []map[string]any, opts ...Option) (*Runner[H], error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("runner: concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.Samples < 0 {
		return nil, fmt.Errorf("runner: samples must not be negative, got %d", cfg.Samples)
	}
	if len(args) == 0 {
		return nil, errors.New("runner: no query arguments")
	}
	if cfg.TrialTimeout == 0 {
		cfg.TrialTimeout = DefaultTrialTimeout
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.updates == nil {
		// nobody reads these; sendUpdate drops once it is full
		s.updates = make(StatsUpdateChan, 10)
	}

	return &Runner[H]{
		Cfg:        cfg,
		Stats:      stats.NewStats(),
		Updates:    s.updates,
		handles:    handles,
		query:      query,
		args:       args,
		logger:     s.logger.With(zap.String("query", cfg.Query)),
		observer:   s.observer,
		checkpoint: uint64(max(1, math.Ceil(float64(cfg.Samples)*0.1))),
	}, nil
}

// StartTickLoop publishes a snapshot every interval until ctx is done.
func (r *Runner[H]) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner[H]) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Query:          r.Cfg.Query,
		Samples:        r.Cfg.Samples,
		Completed:      r.Stats.Completed(),
		Success:        r.Stats.Succeeded(),
		Fail:           r.Stats.Failed(),
		Inflight:       r.inflight.Load(),
		ErrorRate:      r.Stats.ErrorRate(),
		P50ServiceMs:   r.Stats.GetP50Service(),
		P90ServiceMs:   r.Stats.GetP90Service(),
		P99ServiceMs:   r.Stats.GetP99Service(),
		MaxServiceMs:   r.Stats.ServiceTime.Max() / 1000,
		AvgQueueWaitMs: r.Stats.QueueWaitAvgMs(),
	}
}

func (r *Runner[H]) sendUpdate() {
	select {
	case r.Updates <- r.Snapshot():
	default:
		// a slow view misses ticks, trials never wait on it
	}
}

func (r *Runner[H]) GetInflight() int64 {
	return r.inflight.Load()
}

// RunAll issues Cfg.Samples trials in index order, at most Cfg.Concurrency at
// a time, and waits for all of them. Failed trials are recorded; any other
// error stops issuing new trials and is returned once running ones finish.
func (r *Runner[H]) RunAll(ctx context.Context) (*BenchmarkRun, error) {
	run := &BenchmarkRun{
		Config:  r.Cfg,
		Started: time.Now(),
		Records: make([]TrialRecord, 0, r.Cfg.Samples),
	}

	sem := semaphore.NewWeighted(int64(r.Cfg.Concurrency))
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i := 0; i < r.Cfg.Samples; i++ {
		i := i
		issued := time.Now()
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			rec, err := r.runTrial(gctx, i, time.Since(issued))
			if err != nil {
				return err
			}
			mu.Lock()
			run.Records = append(run.Records, rec)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run.Finished = time.Now()
	r.sendUpdate()
	return run, nil
}

func (r *Runner[H]) runTrial(ctx context.Context, index int, queueWait time.Duration) (rec TrialRecord, err error) {
	sample := index + 1
	rec = TrialRecord{Index: index}

	h, err := r.handles.Acquire(ctx)
	if err != nil {
		if !errors.Is(err, pool.ErrPoolExhausted) {
			return rec, fmt.Errorf("sample %d: acquire handle: %w", sample, err)
		}
		rec.Outcome = AcquisitionFailure
		rec.Err = err.Error()
		r.Stats.AddFailure(queueWait)
		r.logger.Debug("sample failed", zap.Int("sample", sample), zap.Error(err))
		r.finish(rec)
		return rec, nil
	}
	defer func() {
		if rerr := r.handles.Release(h); rerr != nil && err == nil {
			err = fmt.Errorf("sample %d: release handle: %w", sample, rerr)
		}
	}()

	args := r.args[index%len(r.args)]
	qctx, cancel := context.WithTimeout(ctx, r.Cfg.TrialTimeout)
	defer cancel()

	r.inflight.Add(1)
	if r.observer != nil {
		r.observer.Inflight(1)
	}
	start := time.Now()
	results, qerr := r.query(qctx, h, args)
	end := time.Now()
	r.inflight.Add(-1)
	if r.observer != nil {
		r.observer.Inflight(-1)
	}

	switch {
	case qerr == nil:
		rec.Outcome = Success
		rec.Start, rec.End, rec.Duration = start, end, end.Sub(start)
		rec.Results = len(results)
		r.Stats.AddSuccess(rec.Duration, queueWait, len(results))
		r.logResult(sample, args, results)

	case isRemote(qerr) || (errors.Is(qerr, context.DeadlineExceeded) && ctx.Err() == nil):
		rec.Outcome = QueryFailure
		rec.Err = qerr.Error()
		r.Stats.AddFailure(queueWait)
		r.logger.Debug("sample failed", zap.Int("sample", sample), zap.Error(qerr))

	default:
		return rec, fmt.Errorf("sample %d: %w", sample, qerr)
	}

	r.finish(rec)
	return rec, nil
}

func (r *Runner[H]) finish(rec TrialRecord) {
	if r.observer != nil {
		r.observer.TrialFinished(rec.Outcome, rec.Duration)
	}
	if done := r.Stats.Completed(); done%r.checkpoint == 0 {
		r.logger.Info("progress", zap.Uint64("finished", done), zap.Int("samples", r.Cfg.Samples))
	}
}

func (r *Runner[H]) logResult(sample int, args map[string]any, results []any) {
	if ce := r.logger.Check(zap.DebugLevel, "sample finished"); ce != nil {
		shown := results
		if len(shown) > logResultLimit {
			shown = shown[:logResultLimit]
		}
		ce.Write(
			zap.Int("sample", sample),
			zap.Any("args", args),
			zap.Int("results", len(results)),
			zap.Bool("truncated", len(results) > logResultLimit),
			zap.Any("result", shown),
		)
	}
}

func isRemote(err error) bool {
	var re RemoteError
	return errors.As(err, &re) && re.Remote()
}
