package metrics

import (
	"testing"
	"time"

	"admissions/internal/admissions"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PinVerification(admissions.OutcomeOK)
	m.PinVerification(admissions.OutcomeOK)
	m.PinVerification(admissions.CodePinExpired)
	m.PaymentCreated()
	m.Submission(false)
	m.Submission(true)
	m.Submission(true)
	m.ObserveRequest("GET", 200, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PinVerifications.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PinVerifications.WithLabelValues("PIN_EXPIRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("new")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("resubmission")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PinVerification(admissions.CodePinNotFound)
		m.PaymentCreated()
		m.Submission(true)
		m.ObserveRequest("POST", 500, time.Now())
	})
}
