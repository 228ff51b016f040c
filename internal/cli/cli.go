// Package cli drives benchmark runs from the command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"graphbench/internal/gremlin"
	"graphbench/internal/metrics"
	"graphbench/internal/pool"
	"graphbench/internal/queries"
	"graphbench/internal/report"
	"graphbench/internal/runner"
	"graphbench/internal/stats"
	"graphbench/internal/storage"
	"graphbench/internal/tui"
)

const tickInterval = 200 * time.Millisecond

type Options struct {
	Endpoint string
	Port     int
	Secure   bool

	Users   int
	Samples int
	Queries []string

	TrialTimeout   time.Duration
	AcquireRetries int
	AcquireWait    time.Duration

	CSV    bool
	JSON   bool
	Output string

	MetricsAddr  string
	TUI          bool
	DBPath       string
	WebsitesFile string
	WebsitesTTL  time.Duration
	Seed         int64
}

// Result is the outcome of benchmarking one query.
type Result struct {
	Query   string
	Run     *runner.BenchmarkRun
	Summary stats.Summary
	// SummaryErr is stats.ErrNoSamples when no trial succeeded.
	SummaryErr error
}

// Start benchmarks every selected query in turn on one connection pool.
// Progress and summaries go to out; diagnostics go to logger.
func Start(ctx context.Context, opts Options, logger *zap.Logger, out io.Writer) ([]Result, error) {
	qs, err := queries.Expand(opts.Queries)
	if err != nil {
		return nil, err
	}
	if opts.Endpoint == "" {
		return nil, errors.New("cli: cluster endpoint is not set (CLUSTER_ENDPOINT)")
	}
	if opts.Users < 1 {
		return nil, fmt.Errorf("cli: users must be at least 1, got %d", opts.Users)
	}
	if opts.AcquireWait <= 0 {
		opts.AcquireWait = pool.DefaultAttemptWait
	}

	store, err := storage.Open(opts.DBPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	dialer := &gremlin.Dialer{Endpoint: opts.Endpoint, Port: opts.Port, Secure: opts.Secure, Logger: logger}
	printHeader(out, opts, dialer.URL(), qs)

	collector := metrics.New()
	if opts.MetricsAddr != "" {
		if _, err := collector.Serve(ctx, opts.MetricsAddr, logger); err != nil {
			return nil, err
		}
	}

	logger.Info("opening connection pool", zap.String("url", dialer.URL()), zap.Int("size", opts.Users))
	p, err := pool.New[*gremlin.Conn](ctx, opts.Users, dialer,
		pool.WithRetries(opts.AcquireRetries),
		pool.WithAttemptWait(opts.AcquireWait),
		pool.WithObserver(collector.ObservePool),
	)
	if err != nil {
		return nil, fmt.Errorf("cli: open pool: %w", err)
	}
	defer func() {
		if err := p.Shutdown(); err != nil {
			logger.Warn("pool shutdown", zap.Error(err))
		}
	}()

	disc, err := dialer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("cli: open discovery connection: %w", err)
	}
	defer dialer.Close(disc)

	websites, err := websiteSource(opts, store, dialer.URL(), logger)
	if err != nil {
		return nil, err
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	env := queries.Env{Rand: rand.New(rand.NewSource(seed)), Websites: websites}

	var results []Result
	for _, q := range qs {
		res, err := benchmark(ctx, q, p, disc, env, opts, collector, logger, out)
		if err != nil {
			return results, err
		}
		results = append(results, res)

		sum := &storage.RunSummary{
			Endpoint:  dialer.URL(),
			Config:    res.Run.Config,
			Succeeded: res.Run.Succeeded(),
			Failed:    res.Run.Failed(),
			Elapsed:   res.Run.Elapsed(),
		}
		if res.SummaryErr == nil {
			p99, _ := res.Summary.At(99)
			sum.MeanMs = ms(res.Summary.Mean)
			sum.MedianMs = ms(res.Summary.Median)
			sum.P99Ms = ms(p99)
			sum.MaxMs = ms(res.Summary.Max)
		}
		if err := store.SaveRun(sum); err != nil {
			logger.Warn("cannot record run in history", zap.Error(err))
		}
	}
	return results, nil
}

func websiteSource(opts Options, store *storage.Store, key string, logger *zap.Logger) (queries.WebsiteSource, error) {
	var seed queries.StaticWebsites
	if opts.WebsitesFile != "" {
		var err error
		if seed, err = queries.LoadWebsitesFile(opts.WebsitesFile); err != nil {
			return nil, err
		}
		logger.Info("loaded websites", zap.String("file", opts.WebsitesFile), zap.Int("count", len(seed)))
	}
	return &queries.CachedWebsites{
		Store:  store,
		Key:    key,
		TTL:    opts.WebsitesTTL,
		Seed:   seed,
		Logger: logger,
	}, nil
}

func benchmark(ctx context.Context, q queries.Query, p *pool.Pool[*gremlin.Conn], disc *gremlin.Conn,
	env queries.Env, opts Options, collector *metrics.Collector, logger *zap.Logger, out io.Writer,
) (Result, error) {
	qlog := logger.With(zap.String("query", q.Name))

	qlog.Info("discovering arguments")
	found, err := q.Discover(ctx, disc, env)
	if err != nil {
		return Result{}, err
	}
	args := make([]map[string]any, len(found))
	for i, a := range found {
		args[i] = a
	}
	qlog.Info("discovered arguments", zap.Int("count", len(args)))

	cfg := runner.Config{
		Query:        q.Name,
		Samples:      opts.Samples,
		Concurrency:  opts.Users,
		TrialTimeout: opts.TrialTimeout,
	}
	run := func(ctx context.Context, c *gremlin.Conn, a map[string]any) ([]any, error) {
		return q.Run(ctx, c, a)
	}
	r, err := runner.New[*gremlin.Conn](cfg, p, run, args,
		runner.WithLogger(logger),
		runner.WithObserver(collector.For(q.Name)),
		runner.WithUpdates(make(runner.StatsUpdateChan, 16)),
	)
	if err != nil {
		return Result{}, err
	}

	br, err := execute(ctx, r, opts.TUI, out)
	if err != nil {
		return Result{}, fmt.Errorf("cli: %s: %w", q.Name, err)
	}

	res := Result{Query: q.Name, Run: br}
	res.Summary, res.SummaryErr = stats.Summarize(br.Durations())
	printSummary(out, res)
	qlog.Info("Successful queries", zap.Int("count", br.Succeeded()))
	qlog.Info("Failed queries", zap.Int("count", br.Failed()))

	if opts.CSV {
		if err := report.Save(opts.Output, opts.Users, br); err != nil {
			return res, err
		}
		qlog.Info("wrote results", zap.String("file", report.RecordsPath(opts.Output, q.Name, opts.Samples, opts.Users)))
	}
	if opts.JSON {
		if err := report.SaveJSON(opts.Output, opts.Users, br); err != nil {
			return res, err
		}
	}
	return res, nil
}

// execute runs all trials while rendering progress, either as a single
// rewritten line or as a bubbletea view.
func execute(ctx context.Context, r *runner.Runner[*gremlin.Conn], interactive bool, out io.Writer) (*runner.BenchmarkRun, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.StartTickLoop(runCtx, tickInterval)

	if !interactive {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-runCtx.Done():
					return
				case s := <-r.Updates:
					printProgress(out, s)
				}
			}
		}()
		br, err := r.RunAll(runCtx)
		cancel()
		<-done
		printProgress(out, r.Snapshot())
		fmt.Fprintln(out)
		return br, err
	}

	type outcome struct {
		run *runner.BenchmarkRun
		err error
	}
	finished := make(chan outcome, 1)
	prog := tea.NewProgram(tui.NewModel(r.Cfg, r.Updates), tea.WithContext(runCtx), tea.WithOutput(out))
	go func() {
		br, err := r.RunAll(runCtx)
		finished <- outcome{br, err}
		prog.Send(tui.DoneMsg{Err: err})
	}()

	_, perr := prog.Run()
	// quitting the view early aborts the run
	cancel()
	res := <-finished
	if res.err == nil && perr != nil && !errors.Is(perr, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("tui: %w", perr)
	}
	return res.run, res.err
}

func printHeader(out io.Writer, opts Options, url string, qs []queries.Query) {
	names := make([]string, len(qs))
	for i, q := range qs {
		names[i] = q.Name
	}
	fmt.Fprintf(out, "\nGRAPHBENCH\n")
	fmt.Fprintf(out, "%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(out, "Endpoint : %s\n", url)
	fmt.Fprintf(out, "Users    : %d\n", opts.Users)
	fmt.Fprintf(out, "Samples  : %s per query\n", humanize.Comma(int64(opts.Samples)))
	fmt.Fprintf(out, "Queries  : %s\n", strings.Join(names, ", "))
	fmt.Fprintf(out, "Timeout  : %s per trial\n", opts.TrialTimeout)
	fmt.Fprintf(out, "%s\n\n", strings.Repeat("=", 70))
}

func printProgress(out io.Writer, s runner.StatsSnapshot) {
	pct := 1.0
	if s.Samples > 0 {
		pct = min(1, float64(s.Completed)/float64(s.Samples))
	}
	fmt.Fprintf(out, "\r%-36s %s %3.0f%% | %s/%s | Inf: %3d | OK: %s | Err: %s",
		s.Query, progressBar(pct, 20), pct*100,
		humanize.Comma(int64(s.Completed)), humanize.Comma(int64(s.Samples)),
		s.Inflight,
		humanize.Comma(int64(s.Success)),
		humanize.Comma(int64(s.Fail)),
	)
}

func progressBar(pct float64, width int) string {
	filled := min(max(int(pct*float64(width)), 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
