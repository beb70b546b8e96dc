package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	stageKept       *prometheus.HistogramVec
	visionVerdicts  *prometheus.CounterVec
	streamedClients prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pss",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pss",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pss",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pss",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search pipeline runs by type and status.",
		},
		[]string{"service", "type", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pss",
			Subsystem: "search",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	stageKept := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pss",
			Subsystem: "search",
			Name:      "stage_kept_candidates",
			Help:      "Candidates surviving each pipeline stage.",
			Buckets:   []float64{0, 1, 3, 5, 10, 20, 30, 50},
		},
		[]string{"service", "stage"},
	)
	visionVerdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pss",
			Subsystem: "vision",
			Name:      "verdicts_total",
			Help:      "Vision validation verdicts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	streamedClients := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pss",
			Subsystem: "stream",
			Name:      "connected_clients",
			Help:      "Number of clients with an open event stream.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		stageDuration,
		stageKept,
		visionVerdicts,
		streamedClients,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		searchTotal:     searchTotal,
		stageDuration:   stageDuration,
		stageKept:       stageKept,
		visionVerdicts:  visionVerdicts,
		streamedClients: streamedClients,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) StreamOpened() {
	m.streamedClients.Inc()
}

func (m *HTTPServerMetrics) StreamClosed() {
	m.streamedClients.Dec()
}

// PipelineRecorder adapts the registry to the search pipeline's metrics
// interface.
type PipelineRecorder struct {
	metrics *HTTPServerMetrics
	service string
}

func NewPipelineRecorder(metrics *HTTPServerMetrics, service string) *PipelineRecorder {
	return &PipelineRecorder{metrics: metrics, service: service}
}

func (r *PipelineRecorder) RecordSearch(searchType domain.SearchType, status string) {
	if status == "" {
		status = "unknown"
	}
	r.metrics.searchTotal.WithLabelValues(r.service, string(searchType), status).Inc()
}

func (r *PipelineRecorder) RecordStage(stage domain.Stage, duration time.Duration, kept int) {
	r.metrics.stageDuration.WithLabelValues(r.service, string(stage)).Observe(duration.Seconds())
	if kept >= 0 {
		r.metrics.stageKept.WithLabelValues(r.service, string(stage)).Observe(float64(kept))
	}
}

func (r *PipelineRecorder) RecordVisionVerdict(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	r.metrics.visionVerdicts.WithLabelValues(r.service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
