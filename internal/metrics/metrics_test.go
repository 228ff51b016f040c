package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphbench/internal/pool"
	"graphbench/internal/runner"
)

func TestQueryObserver(t *testing.T) {
	c := New()
	obs := c.For("get_sibling_attrs")

	obs.Inflight(1)
	obs.Inflight(1)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.inflight.WithLabelValues("get_sibling_attrs")))
	obs.Inflight(-1)
	obs.Inflight(-1)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inflight.WithLabelValues("get_sibling_attrs")))

	obs.TrialFinished(runner.Success, 20*time.Millisecond)
	obs.TrialFinished(runner.Success, 40*time.Millisecond)
	obs.TrialFinished(runner.QueryFailure, 0)
	obs.TrialFinished(runner.AcquisitionFailure, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.trials.WithLabelValues("get_sibling_attrs", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.trials.WithLabelValues("get_sibling_attrs", "query_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.trials.WithLabelValues("get_sibling_attrs", "acquisition_failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestObservePool(t *testing.T) {
	c := New()
	c.ObservePool(pool.Stats{Capacity: 4, Available: 1, Active: 3, Attempts: 12, Exhausted: 2})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.handles.WithLabelValues("available")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.handles.WithLabelValues("active")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.attempts))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.exhausted))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.For("q").TrialFinished(runner.Success, time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `graphbench_trials_total{outcome="success",query="q"} 1`)
	assert.Contains(t, string(body), "graphbench_trial_duration_seconds_bucket")
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := New().Serve(ctx, "127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
