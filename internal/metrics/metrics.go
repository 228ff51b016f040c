// Package metrics exposes live benchmark progress in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"graphbench/internal/pool"
	"graphbench/internal/runner"
)

const namespace = "graphbench"

type Collector struct {
	registry *prometheus.Registry

	trials    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inflight  *prometheus.GaugeVec
	handles   *prometheus.GaugeVec
	attempts  prometheus.Gauge
	exhausted prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Finished trials by query and outcome.",
		}, []string{"query", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trial_duration_seconds",
			Help:      "Query time of successful trials.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"query"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trials_inflight",
			Help:      "Queries currently executing.",
		}, []string{"query"}),
		handles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "handles",
			Help:      "Pooled connections by state.",
		}, []string{"state"}),
		attempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_attempts",
			Help:      "Acquisition attempts since the pool was opened.",
		}),
		exhausted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_exhausted",
			Help:      "Acquisitions that gave up since the pool was opened.",
		}),
	}
	c.registry.MustRegister(
		c.trials, c.duration, c.inflight, c.handles, c.attempts, c.exhausted,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObservePool records a pool snapshot. It fits pool.WithObserver.
func (c *Collector) ObservePool(s pool.Stats) {
	c.handles.WithLabelValues("available").Set(float64(s.Available))
	c.handles.WithLabelValues("active").Set(float64(s.Active))
	c.attempts.Set(float64(s.Attempts))
	c.exhausted.Set(float64(s.Exhausted))
}

// For returns the trial observer of one query.
func (c *Collector) For(query string) runner.Observer {
	return &queryObserver{c: c, query: query}
}

type queryObserver struct {
	c     *Collector
	query string
}

func (o *queryObserver) Inflight(delta int) {
	o.c.inflight.WithLabelValues(o.query).Add(float64(delta))
}

func (o *queryObserver) TrialFinished(outcome runner.Outcome, d time.Duration) {
	o.c.trials.WithLabelValues(o.query, outcome.String()).Inc()
	if outcome == runner.Success {
		o.c.duration.WithLabelValues(o.query).Observe(d.Seconds())
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger *zap.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}
