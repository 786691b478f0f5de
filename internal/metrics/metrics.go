// Package metrics exposes run counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// Recorder records pipeline metrics on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	candidates    *prometheus.GaugeVec
	softErrors    *prometheus.CounterVec
	scanned       prometheus.Gauge
	lastRun       prometheus.Gauge
}

// New creates a recorder with a fresh registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_runs_total",
				Help: "Total number of screening runs by terminal state",
			},
			[]string{"state"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_stage_duration_seconds",
				Help:    "Duration of orchestrator states in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"state"},
		),
		candidates: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "screener_candidates",
				Help: "Candidates produced in the last run by origin",
			},
			[]string{"origin"},
		),
		softErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_soft_errors_total",
				Help: "Soft errors recorded by kind",
			},
			[]string{"kind"},
		),
		scanned: factory.NewGauge(prometheus.GaugeOpts{
			Name: "screener_instruments_scanned",
			Help: "Instruments evaluated in the last run",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "screener_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run",
		}),
	}
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveStage records how long an orchestrator state took
func (r *Recorder) ObserveStage(state contracts.RunState, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(string(state)).Observe(d.Seconds())
}

// RecordRun counts a finished run and exports its counters
func (r *Recorder) RecordRun(state contracts.RunState, stats contracts.RunStatsSnapshot, consolidated int) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(string(state)).Inc()
	r.lastRun.Set(float64(time.Now().Unix()))
	r.scanned.Set(float64(stats.InstrumentsScanned))

	for origin, n := range stats.ProducedByOrigin {
		r.candidates.WithLabelValues(string(origin)).Set(float64(n))
	}
	r.candidates.WithLabelValues(string(contracts.OriginConsolidated)).Set(float64(consolidated))

	for _, e := range stats.Errors {
		r.softErrors.WithLabelValues(string(e.Kind)).Inc()
	}
}
