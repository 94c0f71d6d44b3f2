// Package metrics exposes the bridge's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the voice bridge. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Call metrics
	CallsActive  prometheus.Gauge
	CallsTotal   *prometheus.CounterVec
	CallDuration prometheus.Histogram

	// Turn metrics
	UtterancesTotal  *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	RepliesTotal     *prometheus.CounterVec
	SegmentsTotal    *prometheus.CounterVec
	AudioBytesTotal  *prometheus.CounterVec
	TimeToFirstAudio prometheus.Histogram

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all metrics registered on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "operador"
	}

	registry := prometheus.NewRegistry()

	callsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of calls with an open media stream",
		},
	)

	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of calls by end reason",
		},
		[]string{"reason"},
	)

	callDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Media stream duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900},
		},
	)

	utterancesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Caller utterances by outcome",
		},
		[]string{"outcome"},
	)

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_stage_duration_seconds",
			Help:      "Duration of each turn stage (stt, reply, speak)",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		},
		[]string{"stage"},
	)

	repliesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies by conversation stage and source",
		},
		[]string{"stage", "source"},
	)

	segmentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_segments_total",
			Help:      "Synthesized reply segments by result",
		},
		[]string{"result"},
	)

	audioBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Telephony audio bytes by direction",
		},
		[]string{"direction"},
	)

	timeToFirstAudio := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "time_to_first_audio_seconds",
			Help:      "Time from reply text to its first audio frame",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	registry.MustRegister(
		callsActive,
		callsTotal,
		callDuration,
		utterancesTotal,
		stageDuration,
		repliesTotal,
		segmentsTotal,
		audioBytesTotal,
		timeToFirstAudio,
		errorsTotal,
		requestsTotal,
	)

	return &Metrics{
		registry:         registry,
		CallsActive:      callsActive,
		CallsTotal:       callsTotal,
		CallDuration:     callDuration,
		UtterancesTotal:  utterancesTotal,
		StageDuration:    stageDuration,
		RepliesTotal:     repliesTotal,
		SegmentsTotal:    segmentsTotal,
		AudioBytesTotal:  audioBytesTotal,
		TimeToFirstAudio: timeToFirstAudio,
		ErrorsTotal:      errorsTotal,
		RequestsTotal:    requestsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordCallStart() {
	if m == nil {
		return
	}
	m.CallsActive.Inc()
}

func (m *Metrics) RecordCallEnd(reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CallsActive.Dec()
	m.CallsTotal.WithLabelValues(reason).Inc()
	m.CallDuration.Observe(duration.Seconds())
}

// RecordUtterance records what happened to a completed caller utterance:
// "answered", "dropped_busy", "empty" or "stt_error".
func (m *Metrics) RecordUtterance(outcome string) {
	if m == nil {
		return
	}
	m.UtterancesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RecordReply(stage, source string) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(stage, source).Inc()
}

// RecordSpeech records one streamed reply.
func (m *Metrics) RecordSpeech(sent, skipped, audioBytes int, firstAudio time.Duration) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.SegmentsTotal.WithLabelValues("sent").Add(float64(sent))
	}
	if skipped > 0 {
		m.SegmentsTotal.WithLabelValues("skipped").Add(float64(skipped))
	}
	if audioBytes > 0 {
		m.AudioBytesTotal.WithLabelValues("outbound").Add(float64(audioBytes))
		m.TimeToFirstAudio.Observe(firstAudio.Seconds())
	}
}

func (m *Metrics) RecordInboundAudio(bytes int) {
	if m == nil {
		return
	}
	m.AudioBytesTotal.WithLabelValues("inbound").Add(float64(bytes))
}

func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (m *Metrics) RecordRequest(route string, status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
