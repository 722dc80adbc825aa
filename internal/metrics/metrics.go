// Package metrics exposes Prometheus counters and histograms for scan passes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal     prometheus.Counter
	ScanDuration   prometheus.Histogram
	SymbolsTotal   *prometheus.CounterVec // labels: outcome=matched|no_match|insufficient_data|fetch_failure
	FetchDuration  prometheus.Histogram
	SignalsTotal   *prometheus.CounterVec // labels: rule
	LastScanTime   prometheus.Gauge
	LastMatchCount prometheus.Gauge
}

// New registers and returns all scanner metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakscan_scans_total",
			Help: "Total completed scan passes",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breakscan_scan_duration_seconds",
			Help:    "Wall time of a whole scan pass",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breakscan_symbols_total",
			Help: "Symbols processed by outcome",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breakscan_fetch_duration_seconds",
			Help:    "Per-symbol market data fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breakscan_signals_total",
			Help: "Triggered rules by name",
		}, []string{"rule"}),
		LastScanTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "breakscan_last_scan_timestamp_seconds",
			Help: "Unix time the last scan finished",
		}),
		LastMatchCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "breakscan_last_scan_matches",
			Help: "Number of matching symbols in the last scan",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScansTotal,
		m.ScanDuration,
		m.SymbolsTotal,
		m.FetchDuration,
		m.SignalsTotal,
		m.LastScanTime,
		m.LastMatchCount,
	)

	return m
}

// ObserveScan records a finished pass.
func (m *Metrics) ObserveScan(started, finished time.Time, matches int) {
	if m == nil {
		return
	}
	m.ScansTotal.Inc()
	m.ScanDuration.Observe(finished.Sub(started).Seconds())
	m.LastScanTime.Set(float64(finished.Unix()))
	m.LastMatchCount.Set(float64(matches))
}

// ObserveSymbol records one symbol's outcome.
func (m *Metrics) ObserveSymbol(outcome string) {
	if m == nil {
		return
	}
	m.SymbolsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one fetch latency.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveSignal records one triggered rule.
func (m *Metrics) ObserveSignal(rule string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(rule).Inc()
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
