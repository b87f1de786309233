package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the recorder.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	segmentsTotal     *prometheus.CounterVec
	bytesTotal        *prometheus.CounterVec
	gapsTotal         *prometheus.CounterVec
	splitsTotal       *prometheus.CounterVec
	pollFailuresTotal *prometheus.CounterVec
	recordingsTotal   *prometheus.CounterVec
	activeRecordings  prometheus.Gauge
}

// New creates and registers Prometheus metrics for the recorder.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_status_requests_total",
		Help: "Total number of status HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_status_errors_total",
		Help: "Total number of status HTTP responses with error status (4xx or 5xx)",
	})
	segmentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_segments_written_total",
		Help: "Total number of segments appended to output files",
	}, []string{"room"})
	bytesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_bytes_written_total",
		Help: "Total number of segment bytes appended to output files",
	}, []string{"room"})
	gapsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_segment_gaps_total",
		Help: "Total number of segments skipped after exhausting download retries",
	}, []string{"room"})
	splitsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_file_splits_total",
		Help: "Total number of output file splits",
	}, []string{"room"})
	pollFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_playlist_poll_failures_total",
		Help: "Total number of failed media playlist polls",
	}, []string{"room"})
	recordingsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_recordings_finished_total",
		Help: "Total number of recordings that reached a terminal state",
	}, []string{"room", "state"})
	activeRecordings := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_active_recordings",
		Help: "Number of rooms currently recording",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		segmentsTotal,
		bytesTotal,
		gapsTotal,
		splitsTotal,
		pollFailuresTotal,
		recordingsTotal,
		activeRecordings,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		segmentsTotal:     segmentsTotal,
		bytesTotal:        bytesTotal,
		gapsTotal:         gapsTotal,
		splitsTotal:       splitsTotal,
		pollFailuresTotal: pollFailuresTotal,
		recordingsTotal:   recordingsTotal,
		activeRecordings:  activeRecordings,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// AddSegment records one written segment of n bytes.
func (m *Metrics) AddSegment(room string, n int64) {
	m.segmentsTotal.WithLabelValues(room).Inc()
	m.bytesTotal.WithLabelValues(room).Add(float64(n))
}

// IncGaps increments the skipped segment counter.
func (m *Metrics) IncGaps(room string) {
	m.gapsTotal.WithLabelValues(room).Inc()
}

// IncSplits increments the file split counter.
func (m *Metrics) IncSplits(room string) {
	m.splitsTotal.WithLabelValues(room).Inc()
}

// IncPollFailures increments the playlist poll failure counter.
func (m *Metrics) IncPollFailures(room string) {
	m.pollFailuresTotal.WithLabelValues(room).Inc()
}

// RecordingStarted increments the active recordings gauge.
func (m *Metrics) RecordingStarted(room string) {
	m.activeRecordings.Inc()
}

// RecordingFinished decrements the active recordings gauge and counts the outcome.
func (m *Metrics) RecordingFinished(room, state string) {
	m.activeRecordings.Dec()
	m.recordingsTotal.WithLabelValues(room, state).Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
