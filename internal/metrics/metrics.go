// Package metrics exports the account service's Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultExpired  = "expired"
	ResultMissing  = "missing"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// Metrics holds every collector the service records. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	CodesIssued   *prometheus.CounterVec
	CodeChecks    *prometheus.CounterVec
	Notifications *prometheus.CounterVec

	LoginAttempts *prometheus.CounterVec
	TokensIssued  *prometheus.CounterVec
}

// New registers the collectors on reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		CodesIssued: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verification_codes_issued_total",
				Help:      "Verification codes generated and stored, by purpose",
			},
			[]string{"purpose"},
		),
		CodeChecks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verification_code_checks_total",
				Help:      "Submitted verification codes by purpose and outcome",
			},
			[]string{"purpose", "result"},
		),
		Notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Outbound notifications by outcome",
			},
			[]string{"result"},
		),
		LoginAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"result"},
		),
		TokensIssued: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Token pairs issued, by grant",
			},
			[]string{"grant"},
		),
	}
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// InFlight adjusts the in-flight gauge by delta.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Add(delta)
}

func (m *Metrics) CodeIssued(purpose string) {
	if m == nil {
		return
	}
	m.CodesIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) CodeChecked(purpose, result string) {
	if m == nil {
		return
	}
	m.CodeChecks.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) TokenIssued(grant string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(grant).Inc()
}
