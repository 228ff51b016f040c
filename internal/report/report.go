// Package report reads and writes the CSV files a benchmark leaves behind.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"graphbench/internal/concurrency"
	"graphbench/internal/runner"
)

// RecordsPath is {dir}/{query}-{samples}-{users}.csv.
func RecordsPath(dir, query string, samples, users int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d-%d.csv", query, samples, users))
}

// CountsPath is {dir}/{query}-{samples}-{users}-stats.csv.
func CountsPath(dir, query string, samples, users int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d-%d-stats.csv", query, samples, users))
}

// SeriesPath is {dir}/{query}-{users}-concurrent.csv.
func SeriesPath(dir, query string, users int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d-concurrent.csv", query, users))
}

// JSONPath is {dir}/{query}-{samples}-{users}.json.
func JSONPath(dir, query string, samples, users int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d-%d.json", query, samples, users))
}

// seconds formats t as unix seconds with microsecond precision. Formatting
// the integer parts keeps the value exact.
func seconds(t time.Time) string {
	us := t.UnixMicro()
	return fmt.Sprintf("%d.%06d", us/1e6, us%1e6)
}

func parseSeconds(s string) (time.Time, error) {
	whole, frac, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	var nsec int64
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		if nsec, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return time.Time{}, err
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}

// WriteRecords writes one row (start, end, duration) in seconds per timed
// trial. There is no header.
func WriteRecords(w io.Writer, run *runner.BenchmarkRun) error {
	cw := csv.NewWriter(w)
	for _, rec := range run.Timed() {
		row := []string{
			seconds(rec.Start),
			seconds(rec.End),
			strconv.FormatFloat(rec.Duration.Seconds(), 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCounts writes the single row (succeeded, failed).
func WriteCounts(w io.Writer, run *runner.BenchmarkRun) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{strconv.Itoa(run.Succeeded()), strconv.Itoa(run.Failed())}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ReadRecords parses a file written by WriteRecords back into intervals.
func ReadRecords(r io.Reader) ([]concurrency.Interval, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	var out []concurrency.Interval
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		start, err := parseSeconds(row[0])
		if err != nil {
			return nil, fmt.Errorf("report: line %d: start: %w", line, err)
		}
		end, err := parseSeconds(row[1])
		if err != nil {
			return nil, fmt.Errorf("report: line %d: end: %w", line, err)
		}
		out = append(out, concurrency.NewInterval(start, end))
	}
}

// WriteSeries appends (timestamp, active, instance) rows.
func WriteSeries(w io.Writer, instance string, samples []concurrency.Sample) error {
	cw := csv.NewWriter(w)
	for _, s := range samples {
		row := []string{seconds(s.Timestamp), strconv.FormatFloat(s.Active, 'f', -1, 64), instance}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON dumps the full run, failed trials included.
func WriteJSON(w io.Writer, run *runner.BenchmarkRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// Save writes the records and counts files of run into dir.
func Save(dir string, users int, run *runner.BenchmarkRun) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	q, n := run.Config.Query, run.Config.Samples
	if err := writeFile(RecordsPath(dir, q, n, users), func(w io.Writer) error { return WriteRecords(w, run) }); err != nil {
		return err
	}
	return writeFile(CountsPath(dir, q, n, users), func(w io.Writer) error { return WriteCounts(w, run) })
}

// SaveJSON writes the JSON dump of run into dir.
func SaveJSON(dir string, users int, run *runner.BenchmarkRun) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return writeFile(JSONPath(dir, run.Config.Query, run.Config.Samples, users), func(w io.Writer) error { return WriteJSON(w, run) })
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return f.Close()
}

// LoadRecords reads the intervals of a records file.
func LoadRecords(path string) ([]concurrency.Interval, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}
