package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"graphbench/internal/concurrency"
	"graphbench/internal/report"
	"graphbench/internal/storage"
	"graphbench/internal/tui/components"
	"graphbench/internal/tui/styles"
)

type ConcurrencyOptions struct {
	Results   string
	Query     string
	Samples   int
	Users     int
	Instances []string
	Cadence   time.Duration
	DBPath    string
}

// Concurrency rebuilds the in-flight series of every client instance from
// its results file and writes them into one CSV under Results.
func Concurrency(opts ConcurrencyOptions, logger *zap.Logger, out io.Writer) (map[string][]concurrency.Sample, error) {
	if len(opts.Instances) == 0 {
		return nil, errors.New("cli: no instances given")
	}
	if opts.Cadence <= 0 {
		opts.Cadence = concurrency.DefaultCadence
	}

	store, err := storage.Open(opts.DBPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	series := make(map[string][]concurrency.Sample, len(opts.Instances))
	for _, inst := range opts.Instances {
		samples, err := instanceSeries(store, opts, inst, logger)
		if err != nil {
			return nil, fmt.Errorf("cli: instance %s: %w", inst, err)
		}
		series[inst] = samples
	}

	path := report.SeriesPath(opts.Results, opts.Query, opts.Users)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cli: %w", err)
	}
	for _, inst := range opts.Instances {
		if err := report.WriteSeries(f, inst, series[inst]); err != nil {
			f.Close()
			return nil, fmt.Errorf("cli: write %s: %w", path, err)
		}
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	logger.Info("wrote concurrency series", zap.String("file", path))

	printSeries(out, opts, series)
	return series, nil
}

// instanceSeries reuses the cached series while the results file is
// unchanged.
func instanceSeries(store *storage.Store, opts ConcurrencyOptions, inst string, logger *zap.Logger) ([]concurrency.Sample, error) {
	src := report.RecordsPath(filepath.Join(opts.Results, inst), opts.Query, opts.Samples, opts.Users)
	fi, err := os.Stat(src)
	if err != nil {
		return nil, err
	}

	key := storage.SeriesKey(opts.Query, opts.Users, inst)
	cached, err := store.GetSeries(key)
	switch {
	case err == nil && cached.Source == src && cached.ModTime.Equal(fi.ModTime()) && cached.Cadence == opts.Cadence:
		logger.Debug("using cached series", zap.String("key", key))
		return cached.Samples, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		logger.Warn("cannot read cached series", zap.String("key", key), zap.Error(err))
	}

	ivs, err := report.LoadRecords(src)
	if err != nil {
		return nil, err
	}
	samples, err := concurrency.Series(ivs, concurrency.Config{Concurrency: opts.Users, Cadence: opts.Cadence})
	if err != nil {
		return nil, err
	}
	logger.Info("reconstructed concurrency",
		zap.String("instance", inst),
		zap.Int("intervals", len(ivs)),
		zap.Int("samples", len(samples)))

	if err := store.PutSeries(key, storage.Series{
		Source:  src,
		ModTime: fi.ModTime(),
		Cadence: opts.Cadence,
		Samples: samples,
	}); err != nil {
		logger.Warn("cannot cache series", zap.String("key", key), zap.Error(err))
	}
	return samples, nil
}

func printSeries(out io.Writer, opts ConcurrencyOptions, series map[string][]concurrency.Sample) {
	fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%s · %d users", opts.Query, opts.Users)))
	for _, inst := range opts.Instances {
		samples := series[inst]
		values := make([]float64, len(samples))
		var sum, peak float64
		for i, s := range samples {
			values[i] = s.Active
			sum += s.Active
			peak = max(peak, s.Active)
		}
		mean := 0.0
		if len(values) > 0 {
			mean = sum / float64(len(values))
		}

		spark := components.NewSparkline(60, inst, styles.Active)
		spark.Fit(values)
		stats := styles.Subtle.Render(fmt.Sprintf("mean %.2f  peak %.2f  target %d", mean, peak, opts.Users))
		fmt.Fprintln(out, lipgloss.JoinVertical(lipgloss.Left, spark.View(), stats))
	}
}
