package metrics

import (
	"strconv"
	"time"

	"admissions/internal/admissions"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the admissions counters. A nil *Metrics is a no-op.
type Metrics struct {
	PinVerifications *prometheus.CounterVec
	PaymentsCreated  prometheus.Counter
	Submissions      *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PinVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_pin_verifications_total",
			Help: "PIN verification attempts by outcome code",
		}, []string{"outcome"}),
		PaymentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "admissions_payments_created_total",
			Help: "Confirmed payments recorded with an application fee PIN",
		}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_submissions_total",
			Help: "Application submissions, split into first submissions and resubmissions",
		}, []string{"kind"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admissions_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "status"}),
	}
}

func (m *Metrics) PinVerification(outcome admissions.Code) {
	if m == nil {
		return
	}
	m.PinVerifications.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) PaymentCreated() {
	if m == nil {
		return
	}
	m.PaymentsCreated.Inc()
}

func (m *Metrics) Submission(resubmission bool) {
	if m == nil {
		return
	}
	kind := "new"
	if resubmission {
		kind = "resubmission"
	}
	m.Submissions.WithLabelValues(kind).Inc()
}

// ObserveRequest records a finished HTTP request. Call with the time the request started.
func (m *Metrics) ObserveRequest(method string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
