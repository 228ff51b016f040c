package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphbench/internal/concurrency"
	"graphbench/internal/runner"
)

func sampleRun() *runner.BenchmarkRun {
	t0 := time.Unix(1_700_000_000, 250_000_000).UTC()
	return &runner.BenchmarkRun{
		Config: runner.Config{Query: "get_sibling_attrs", Samples: 3, Concurrency: 2},
		Records: []runner.TrialRecord{
			{Index: 0, Outcome: runner.Success, Start: t0, End: t0.Add(1500 * time.Microsecond), Duration: 1500 * time.Microsecond},
			{Index: 1, Outcome: runner.QueryFailure, Err: "boom"},
			{Index: 2, Outcome: runner.Success, Start: t0.Add(time.Second), End: t0.Add(1200 * time.Millisecond), Duration: 200 * time.Millisecond},
		},
	}
}

func TestWriteRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, sampleRun()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1700000000.250000,1700000000.251500,0.001500", lines[0])
	assert.Equal(t, "1700000001.250000,1700000001.450000,0.200000", lines[1])
}

func TestWriteCounts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCounts(&buf, sampleRun()))
	assert.Equal(t, "2,1\n", buf.String())
}

func TestReadRecordsRoundTrip(t *testing.T) {
	run := sampleRun()
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, run))

	ivs, err := ReadRecords(&buf)
	require.NoError(t, err)
	assert.Equal(t, run.Intervals(), ivs)
}

func TestReadRecordsRejectsMalformed(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("1.0,2.0\n"))
	assert.Error(t, err)
	_, err = ReadRecords(strings.NewReader("x,2.0,1.0\n"))
	assert.Error(t, err)
}

func TestWriteSeries(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0).UTC()
	var buf bytes.Buffer
	require.NoError(t, WriteSeries(&buf, "client-1", []concurrency.Sample{
		{Timestamp: t0, Active: 2},
		{Timestamp: t0.Add(100 * time.Millisecond), Active: 2.5},
	}))
	assert.Equal(t, "1700000000.000000,2,client-1\n1700000000.100000,2.5,client-1\n", buf.String())
}

func TestSaveWritesBothFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	run := sampleRun()
	require.NoError(t, Save(dir, 2, run))
	require.NoError(t, SaveJSON(dir, 2, run))

	assert.FileExists(t, filepath.Join(dir, "get_sibling_attrs-3-2.csv"))
	assert.FileExists(t, filepath.Join(dir, "get_sibling_attrs-3-2.json"))
	counts, err := os.ReadFile(filepath.Join(dir, "get_sibling_attrs-3-2-stats.csv"))
	require.NoError(t, err)
	assert.Equal(t, "2,1\n", string(counts))

	ivs, err := LoadRecords(RecordsPath(dir, "get_sibling_attrs", 3, 2))
	require.NoError(t, err)
	assert.Len(t, ivs, 2)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("r", "q-100-10.csv"), RecordsPath("r", "q", 100, 10))
	assert.Equal(t, filepath.Join("r", "q-100-10-stats.csv"), CountsPath("r", "q", 100, 10))
	assert.Equal(t, filepath.Join("r", "q-10-concurrent.csv"), SeriesPath("r", "q", 10))
}
