// Package metrics records deployment run metrics for the Prometheus
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess     = "success"
	ResultConfigError = "config_error"
	ResultTxError     = "tx_error"
)

// Recorder holds the metrics for one process.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	duration    prometheus.Gauge
	gasUsed     prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mytoken_deploy_runs_total",
			Help: "Deployment runs by result.",
		}, []string{"result"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mytoken_deploy_duration_seconds",
			Help: "Wall time of the last deployment run.",
		}),
		gasUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mytoken_deploy_gas_used",
			Help: "Gas used by the last successful deployment.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mytoken_deploy_last_success_timestamp_seconds",
			Help: "Unix time of the last successful deployment.",
		}),
	}
	r.registry.MustRegister(r.runs, r.duration, r.gasUsed, r.lastSuccess)
	return r
}

// ObserveSuccess records a successful run.
func (r *Recorder) ObserveSuccess(d time.Duration, gasUsed uint64, at time.Time) {
	r.runs.WithLabelValues(ResultSuccess).Inc()
	r.duration.Set(d.Seconds())
	r.gasUsed.Set(float64(gasUsed))
	r.lastSuccess.Set(float64(at.Unix()))
}

// ObserveFailure records a failed run under result.
func (r *Recorder) ObserveFailure(d time.Duration, result string) {
	r.runs.WithLabelValues(result).Inc()
	r.duration.Set(d.Seconds())
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path atomically. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
