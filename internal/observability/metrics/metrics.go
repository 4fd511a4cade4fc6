package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerMetrics aggregates the HTTP surface and the resolver's own
// counters under one registry.
type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	resolutionsTotal       *prometheus.CounterVec
	completionDuration     prometheus.Histogram
	completionFailures     prometheus.Counter
	clarificationsTotal    *prometheus.CounterVec
	sessionContextsEvicted prometheus.Counter
	sessionContextsLive    prometheus.Gauge
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teamply",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "teamply",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "teamply",
		Subsystem:   "http",
		Name:        "requests_in_flight",
		Help:        "HTTP requests currently being served.",
		ConstLabels: prometheus.Labels{"service": service},
	})

	resolutionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teamply",
			Subsystem: "intent",
			Name:      "resolutions_total",
			Help:      "Resolved intents by action and resolution source.",
		},
		[]string{"action", "source"},
	)
	completionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "teamply",
		Subsystem: "intent",
		Name:      "completion_duration_seconds",
		Help:      "Latency of the external completion call.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
	})
	completionFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "teamply",
		Subsystem: "intent",
		Name:      "completion_failures_total",
		Help:      "Completion calls that failed or timed out.",
	})
	clarificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teamply",
			Subsystem: "intent",
			Name:      "clarifications_total",
			Help:      "Clarification state transitions by outcome.",
		},
		[]string{"outcome"},
	)
	sessionContextsEvicted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "teamply",
		Subsystem: "session",
		Name:      "contexts_evicted_total",
		Help:      "Contexts removed by the staleness sweep.",
	})
	sessionContextsLive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "teamply",
		Subsystem: "session",
		Name:      "contexts_live",
		Help:      "Stored conversation contexts, sampled after each sweep.",
	})

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		resolutionsTotal,
		completionDuration,
		completionFailures,
		clarificationsTotal,
		sessionContextsEvicted,
		sessionContextsLive,
	)

	return &ServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		resolutionsTotal:       resolutionsTotal,
		completionDuration:     completionDuration,
		completionFailures:     completionFailures,
		clarificationsTotal:    clarificationsTotal,
		sessionContextsEvicted: sessionContextsEvicted,
		sessionContextsLive:    sessionContextsLive,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments every request on the router.
func (m *ServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(service, r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// ObserveResolution records one resolved intent. source is "model",
// "fallback", "clarification" or "upstream_error".
func (m *ServerMetrics) ObserveResolution(action, source string) {
	m.resolutionsTotal.WithLabelValues(action, source).Inc()
}

func (m *ServerMetrics) ObserveCompletion(duration time.Duration, success bool) {
	m.completionDuration.Observe(duration.Seconds())
	if !success {
		m.completionFailures.Inc()
	}
}

// ObserveClarification records a state transition: "opened",
// "resolved" or "rejected".
func (m *ServerMetrics) ObserveClarification(outcome string) {
	m.clarificationsTotal.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) ObserveEvictions(count int) {
	if count > 0 {
		m.sessionContextsEvicted.Add(float64(count))
	}
}

func (m *ServerMetrics) ObserveLiveContexts(count int) {
	m.sessionContextsLive.Set(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
