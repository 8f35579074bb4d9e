// Package metrics defines the counters/histograms interface every
// long-running component reports through. Per the "shared global state
// (logger, metrics, config singleton)" redesign note, there is no package-
// level registry here: a Recorder is an explicit collaborator a SyncEngine,
// Analyser, or Worker is constructed with, not a global mutated from
// wherever. Library: github.com/prometheus/client_golang, the same stack
// cuemby-warren's pkg/metrics wires, adapted from its package-global
// gauge/counter/histogram vars into an injected interface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the counters/histograms contract components report through.
// Label values are positional and match the metric's declared label names.
type Recorder interface {
	IncCounter(name string, labels ...string)
	ObserveHistogram(name string, seconds float64, labels ...string)
	SetGauge(name string, value float64, labels ...string)
}

// Null discards every observation. Components default to it when no
// Recorder is supplied, so metrics remain genuinely optional.
var Null Recorder = nullRecorder{}

type nullRecorder struct{}

func (nullRecorder) IncCounter(string, ...string)                {}
func (nullRecorder) ObserveHistogram(string, float64, ...string) {}
func (nullRecorder) SetGauge(string, float64, ...string)         {}

// Timer measures elapsed wall time for a single ObserveHistogram call,
// mirroring cuemby-warren's pkg/metrics.Timer.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// ObserveSeconds reports the elapsed time in seconds to name on r.
func (t Timer) ObserveSeconds(r Recorder, name string, labels ...string) {
	r.ObserveHistogram(name, time.Since(t.start).Seconds(), labels...)
}

// Names of the metrics docdedupe's components report. Centralized here so
// a PrometheusRecorder and any test recorder agree on spelling.
const (
	SyncDuration        = "docdedupe_sync_duration_seconds"
	SyncDocumentsPulled = "docdedupe_sync_documents_pulled_total"
	SyncErrors          = "docdedupe_sync_errors_total"

	AnalysisDuration       = "docdedupe_analysis_duration_seconds"
	AnalysisGroupsFound    = "docdedupe_analysis_groups_found"
	AnalysisDocsCompared   = "docdedupe_analysis_candidate_pairs_scored_total"

	JobsLaunched  = "docdedupe_jobs_launched_total" // label: job_type
	JobsCompleted = "docdedupe_jobs_completed_total" // labels: job_type, outcome
)

// PrometheusRecorder implements Recorder against a dedicated
// prometheus.Registry (never the global DefaultRegisterer, so multiple
// Recorders — e.g. one per test — never collide on metric names).
type PrometheusRecorder struct {
	registry    *prometheus.Registry
	counters    map[string]*prometheus.CounterVec
	histograms  map[string]*prometheus.HistogramVec
	gauges      map[string]*prometheus.GaugeVec
}

// NewPrometheusRecorder builds a Recorder with docdedupe's known metrics
// pre-registered against a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	pr := &PrometheusRecorder{
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	pr.counter(SyncDocumentsPulled, "Total documents pulled from upstream during sync")
	pr.counter(SyncErrors, "Total sync errors by stage", "stage")
	pr.counter(JobsLaunched, "Total jobs launched by type", "job_type")
	pr.counter(JobsCompleted, "Total jobs completed by type and outcome", "job_type", "outcome")

	pr.histogram(SyncDuration, "Sync run duration in seconds")
	pr.histogram(AnalysisDuration, "Analysis run duration in seconds")

	pr.gauge(AnalysisGroupsFound, "Number of duplicate groups found by the most recent analysis run")
	pr.gauge(AnalysisDocsCompared, "Candidate pairs scored by the most recent analysis run")

	return pr
}

func (pr *PrometheusRecorder) counter(name, help string, labels ...string) {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	pr.registry.MustRegister(c)
	pr.counters[name] = c
}

func (pr *PrometheusRecorder) histogram(name, help string, labels ...string) {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: prometheus.DefBuckets}, labels)
	pr.registry.MustRegister(h)
	pr.histograms[name] = h
}

func (pr *PrometheusRecorder) gauge(name, help string, labels ...string) {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	pr.registry.MustRegister(g)
	pr.gauges[name] = g
}

// IncCounter implements Recorder. Unknown names are silently ignored, so a
// typo in a call site never panics a running job.
func (pr *PrometheusRecorder) IncCounter(name string, labels ...string) {
	if c, ok := pr.counters[name]; ok {
		c.WithLabelValues(labels...).Inc()
	}
}

// ObserveHistogram implements Recorder.
func (pr *PrometheusRecorder) ObserveHistogram(name string, seconds float64, labels ...string) {
	if h, ok := pr.histograms[name]; ok {
		h.WithLabelValues(labels...).Observe(seconds)
	}
}

// SetGauge implements Recorder.
func (pr *PrometheusRecorder) SetGauge(name string, value float64, labels ...string) {
	if g, ok := pr.gauges[name]; ok {
		g.WithLabelValues(labels...).Set(value)
	}
}

// Handler exposes the registry for scraping.
func (pr *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(pr.registry, promhttp.HandlerOpts{})
}
