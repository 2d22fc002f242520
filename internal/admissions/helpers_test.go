package admissions_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"admissions/internal/admissions"
	"admissions/internal/admissions/memstore"
	"admissions/pkg/types"

	"github.com/shopspring/decimal"
)

var errBoom = errors.New("boom")

type fakeFiles struct {
	mu     sync.Mutex
	stored map[string][]byte
	err    error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{stored: map[string][]byte{}}
}

func (f *fakeFiles) Put(_ context.Context, name string, body io.Reader, _ int64, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[name] = data
	return "https://files.test/uploads/" + name, nil
}

func (f *fakeFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*admissions.ApplicationConfirmation
	err  error
}

func (m *fakeMailer) SendApplicationConfirmation(_ context.Context, msg *admissions.ApplicationConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

type failingSink struct{}

func (failingSink) Notify(context.Context, string, string, string) error { return errBoom }

func (failingSink) Record(context.Context, string, string, map[string]any) error { return errBoom }

type failingProgress struct {
	*memstore.Store
}

func (failingProgress) ClearProgress(context.Context, string) error { return errBoom }

// racingPayments hands the PIN to rival just before the caller's claim lands.
type racingPayments struct {
	*memstore.Store
	rival string
}

func (r *racingPayments) ClaimPin(ctx context.Context, paymentID, _ string, at time.Time) (bool, error) {
	if _, err := r.Store.ClaimPin(ctx, paymentID, r.rival, at); err != nil {
		return false, err
	}
	return false, nil
}

// expiringPayments expires the PIN just before the caller's claim lands.
type expiringPayments struct {
	*memstore.Store
}

func (e *expiringPayments) ClaimPin(ctx context.Context, paymentID, userID string, at time.Time) (bool, error) {
	p, err := e.Store.Payment(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if _, err := e.Store.ExpirePin(ctx, p.ApplicationFeePin); err != nil {
		return false, err
	}
	return e.Store.ClaimPin(ctx, paymentID, userID, at)
}

type recordingMetrics struct {
	mu            sync.Mutex
	verifications map[admissions.Code]int
	payments      int
	submissions   map[bool]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		verifications: map[admissions.Code]int{},
		submissions:   map[bool]int{},
	}
}

func (m *recordingMetrics) PinVerification(outcome admissions.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[outcome]++
}

func (m *recordingMetrics) PaymentCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments++
}

func (m *recordingMetrics) Submission(resubmission bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[resubmission]++
}

func upload(field, filename string, size int) admissions.Upload {
	return admissions.Upload{
		Field:       field,
		Filename:    filename,
		ContentType: "application/octet-stream",
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte("x"), min(size, 64))),
	}
}

func paymentInput(reference, pin string) admissions.CreatePaymentInput {
	return admissions.CreatePaymentInput{
		Amount:               decimal.NewFromInt(500),
		DepositorName:        "Jane Doe",
		BankConfirmationPin:  "BCP-" + reference,
		TransactionReference: reference,
		ApplicationFeePin:    pin,
	}
}

func hasAction(entries []*types.AuditEntry, action string) bool {
	for _, e := range entries {
		if e.Action == action {
			return true
		}
	}
	return false
}

func sequencePins(pins ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(pins) {
			return "", errors.New("out of pins")
		}
		pin := pins[i]
		i++
		return pin, nil
	}
}
