package mailer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"admissions/internal/admissions"
	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	from string
	to   []string
	msg  []byte
	err  error
}

func (c *captureSender) Send(_ context.Context, from string, to []string, msg []byte) error {
	c.from, c.to, c.msg = from, to, msg
	return c.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string { return &s }

func confirmation() *admissions.ApplicationConfirmation {
	submitted := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	return &admissions.ApplicationConfirmation{
		Applicant: &types.User{
			ID:        "applicant-a",
			Email:     "jane@example.com",
			FirstName: strPtr("Jane"),
			LastName:  strPtr("Doe"),
		},
		Application: &types.Application{
			ID:             "app-1",
			SubmissionDate: &submitted,
		},
		ApplicationNumber: "APP-2025-001",
		Categories: []admissions.ResponseCategory{
			{
				Category: "Personal",
				Responses: []admissions.CategorizedResponse{
					{QuestionID: 12, QuestionText: "Full name", Answer: "Jane <Doe>"},
				},
			},
			{
				Category: "Documents",
				Responses: []admissions.CategorizedResponse{
					{QuestionID: 23, QuestionText: "Birth certificate", FilePath: strPtr("http://localhost/uploads/a.pdf")},
				},
			},
		},
	}
}

func TestRenderConfirmation(t *testing.T) {
	m, err := New(quietLogger(), &captureSender{}, "admissions@example.com", "Mattru School of Nursing")
	require.NoError(t, err)

	body, err := m.RenderConfirmation(confirmation())
	require.NoError(t, err)

	html := string(body)
	assert.Contains(t, html, "Dear Jane Doe,")
	assert.Contains(t, html, "APP-2025-001")
	assert.Contains(t, html, "March 10, 2025 at 2:30 PM")
	assert.Contains(t, html, "Jane &lt;Doe&gt;")
	assert.Contains(t, html, `href="http://localhost/uploads/a.pdf"`)
	assert.Less(t, strings.Index(html, "Personal"), strings.Index(html, "Documents"))
}

func TestSendApplicationConfirmation(t *testing.T) {
	sender := &captureSender{}
	m, err := New(quietLogger(), sender, "admissions@example.com", "Admissions Office")
	require.NoError(t, err)

	require.NoError(t, m.SendApplicationConfirmation(context.Background(), confirmation()))
	assert.Equal(t, "admissions@example.com", sender.from)
	assert.Equal(t, []string{"jane@example.com"}, sender.to)

	raw := string(sender.msg)
	assert.Contains(t, raw, "Subject: Application Submitted Successfully - APP-2025-001\r\n")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.Contains(t, raw, `To: "Jane Doe" <jane@example.com>`)
}

func TestSendApplicationConfirmationErrors(t *testing.T) {
	sender := &captureSender{err: errors.New("connection refused")}
	m, err := New(quietLogger(), sender, "admissions@example.com", "Admissions Office")
	require.NoError(t, err)

	assert.Error(t, m.SendApplicationConfirmation(context.Background(), confirmation()))

	noRecipient := confirmation()
	noRecipient.Applicant.Email = ""
	assert.Error(t, m.SendApplicationConfirmation(context.Background(), noRecipient))
}

func TestSubmittedAtFallback(t *testing.T) {
	created := time.Date(2025, 1, 2, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "January 2, 2025 at 9:05 AM", submittedAt(&types.Application{CreatedAt: created}))
	assert.Equal(t, "Not available", submittedAt(&types.Application{}))
	assert.Equal(t, "Not available", submittedAt(nil))
}

func TestSendPasswordReset(t *testing.T) {
	sender := &captureSender{}
	m, err := New(quietLogger(), sender, "admissions@example.com", "Admissions Office")
	require.NoError(t, err)

	user := &types.User{ID: "user-1", Email: "jane@example.com", FirstName: strPtr("Jane"), LastName: strPtr("Doe")}
	link := "http://localhost:5173/reset-password?token=abc123"
	expires := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

	require.NoError(t, m.SendPasswordReset(context.Background(), user, link, expires))
	assert.Equal(t, []string{"jane@example.com"}, sender.to)

	raw := string(sender.msg)
	assert.Contains(t, raw, "Subject: Password Reset Request\r\n")
	assert.Contains(t, raw, `href="http://localhost:5173/reset-password?token=abc123"`)
	assert.Contains(t, raw, "March 10, 2025 at 3:30 PM")
	assert.Contains(t, raw, "Hello Jane Doe,")

	assert.Error(t, m.SendPasswordReset(context.Background(), &types.User{ID: "user-2"}, link, expires))
}
