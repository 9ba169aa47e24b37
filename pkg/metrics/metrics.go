// Package metrics provides Prometheus instrumentation for gotally reporters.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the metrics reporters record about their own flushes. A nil
// *Registry is valid and records nothing.
type Registry struct {
	ReporterFlushes        *prometheus.CounterVec
	ReporterFlushErrors    *prometheus.CounterVec
	ReporterFlushDuration  *prometheus.HistogramVec
	ReporterSeries         *prometheus.GaugeVec
	ReporterDroppedSamples *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns a Registry registered on prometheus.DefaultRegisterer,
// creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	cfg := DefaultConfig()
	cfg.Registry = reg
	return NewRegistryWithConfig(cfg)
}

// NewRegistryWithConfig creates a registry from cfg. It returns nil when
// cfg.Enabled is false.
func NewRegistryWithConfig(cfg Config) *Registry {
	if !cfg.Enabled {
		return nil
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "gotally"
	}

	factory := promauto.With(reg)

	return &Registry{
		ReporterFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "reporter",
				Name:        "flushes_total",
				Help:        "Total number of reporter flushes",
				ConstLabels: cfg.Labels,
			},
			[]string{"reporter"},
		),

		ReporterFlushErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "reporter",
				Name:        "flush_errors_total",
				Help:        "Total number of failed reporter flushes",
				ConstLabels: cfg.Labels,
			},
			[]string{"reporter"},
		),

		ReporterFlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "reporter",
				Name:        "flush_duration_seconds",
				Help:        "Time spent flushing a report batch",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: cfg.Labels,
			},
			[]string{"reporter"},
		),

		ReporterSeries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "reporter",
				Name:        "series",
				Help:        "Number of series written by the last flush",
				ConstLabels: cfg.Labels,
			},
			[]string{"reporter"},
		),

		ReporterDroppedSamples: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "reporter",
				Name:        "dropped_samples_total",
				Help:        "Total number of reported samples a backend could not accept",
				ConstLabels: cfg.Labels,
			},
			[]string{"reporter", "reason"},
		),
	}
}

// ObserveFlush records one flush of reporter that started at start and wrote
// series series.
func (r *Registry) ObserveFlush(reporter string, start time.Time, series int, err error) {
	if r == nil {
		return
	}
	r.ReporterFlushes.WithLabelValues(reporter).Inc()
	r.ReporterFlushDuration.WithLabelValues(reporter).Observe(time.Since(start).Seconds())
	if err != nil {
		r.ReporterFlushErrors.WithLabelValues(reporter).Inc()
		return
	}
	r.ReporterSeries.WithLabelValues(reporter).Set(float64(series))
}

// ObserveDropped records n samples of reporter dropped for reason.
func (r *Registry) ObserveDropped(reporter, reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ReporterDroppedSamples.WithLabelValues(reporter, reason).Add(float64(n))
}
