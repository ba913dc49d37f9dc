package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/erp-adi/uiverify/internal/config"
)

// Metrics collects run statistics in a private registry so a one-shot
// process can export them as a textfile or push them to a gateway.
type Metrics struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    prometheus.Histogram
	steps       *prometheus.HistogramVec
	lastSuccess prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewMetrics creates the run metrics in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uiverify_runs_total",
			Help: "Verification runs by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uiverify_run_failures_total",
			Help: "Failed verification runs by failure kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uiverify_run_duration_seconds",
			Help:    "Wall time of a verification run.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uiverify_step_duration_seconds",
			Help:    "Wall time of each verification step.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uiverify_last_run_success",
			Help: "1 if the most recent run succeeded, 0 otherwise.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uiverify_last_run_timestamp_seconds",
			Help: "Unix time the most recent run started.",
		}),
	}
	m.registry.MustRegister(m.runs, m.failures, m.duration, m.steps, m.lastSuccess, m.lastRun)
	return m
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a finished run.
func (m *Metrics) Observe(res *Result) {
	m.runs.WithLabelValues(res.Outcome.String()).Inc()
	m.duration.Observe(res.Duration.Seconds())
	for _, s := range res.Steps {
		m.steps.WithLabelValues(s.Name).Observe(s.Duration.Seconds())
	}
	m.lastRun.Set(float64(res.Started.Unix()))
	if res.Outcome == Succeeded {
		m.lastSuccess.Set(1)
		return
	}
	m.lastSuccess.Set(0)
	m.failures.WithLabelValues(KindOf(res.Err).String()).Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push replaces the job's metrics on a Prometheus pushgateway.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Export writes and pushes the registry to whichever sinks cfg enables.
func (m *Metrics) Export(ctx context.Context, cfg config.MetricsConfig) error {
	var errs []error
	if cfg.Textfile != "" {
		errs = append(errs, m.WriteTextfile(cfg.Textfile))
	}
	if cfg.PushgatewayURL != "" {
		errs = append(errs, m.Push(ctx, cfg.PushgatewayURL, cfg.Job))
	}
	return errors.Join(errs...)
}
