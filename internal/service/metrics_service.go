package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the auth service.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	logins            prometheus.Counter
	rotations         prometheus.Counter
	reuseDetected     prometheus.Counter
	revokedRejections prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	logins := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Successful logins",
	})

	rotations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_rotations_total",
		Help: "Successful refresh token rotations",
	})

	reuseDetected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_reuse_detected_total",
		Help: "Refresh presentations rejected as replayed or unknown",
	})

	revokedRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_revoked_token_rejections_total",
		Help: "Requests rejected because the access token was blocklisted",
	})

	registry.MustRegister(requestDuration, requestTotal, logins, rotations, reuseDetected, revokedRejections)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		logins:            logins,
		rotations:         rotations,
		reuseDetected:     reuseDetected,
		revokedRejections: revokedRejections,
	}
}

// Handler returns the Prometheus scrape handler.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records latency and volume for one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// IncLogin counts a successful login.
func (m *MetricsService) IncLogin() {
	if m == nil {
		return
	}
	m.logins.Inc()
}

// IncRotation counts a successful refresh rotation.
func (m *MetricsService) IncRotation() {
	if m == nil {
		return
	}
	m.rotations.Inc()
}

// IncReuseDetected counts a rejected refresh replay.
func (m *MetricsService) IncReuseDetected() {
	if m == nil {
		return
	}
	m.reuseDetected.Inc()
}

// IncRevokedRejection counts a request carrying a blocklisted access token.
func (m *MetricsService) IncRevokedRejection() {
	if m == nil {
		return
	}
	m.revokedRejections.Inc()
}
