package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"net/mail"
	"strings"
	"time"

	"admissions/internal/admissions"
	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
)

//go:embed templates
var templateFS embed.FS

const submittedDateLayout = "January 2, 2006 at 3:04 PM"

// Sender delivers a fully formed RFC 5322 message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

type Mailer struct {
	logger    *logrus.Logger
	sender    Sender
	from      mail.Address
	school    string
	templates *template.Template
}

func New(logger *logrus.Logger, sender Sender, fromAddress, fromName string) (*Mailer, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	return &Mailer{
		logger:    logger,
		sender:    sender,
		from:      mail.Address{Name: fromName, Address: fromAddress},
		school:    fromName,
		templates: templates,
	}, nil
}

func loadTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"orDash": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "-"
			}
			return s
		},
	}

	t, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return t, nil
}

type confirmationData struct {
	School            string
	ApplicantName     string
	Email             string
	ApplicationNumber string
	SubmittedAt       string
	Categories        []admissions.ResponseCategory
}

func (m *Mailer) SendApplicationConfirmation(ctx context.Context, msg *admissions.ApplicationConfirmation) error {
	if msg == nil || msg.Applicant == nil || msg.Applicant.Email == "" {
		return fmt.Errorf("confirmation has no recipient")
	}

	body, err := m.RenderConfirmation(msg)
	if err != nil {
		return err
	}

	to := mail.Address{Name: msg.Applicant.FullName(), Address: msg.Applicant.Email}
	subject := "Application Submitted Successfully - " + msg.ApplicationNumber

	raw := buildMessage(m.from, to, subject, body)
	if err := m.sender.Send(ctx, m.from.Address, []string{to.Address}, raw); err != nil {
		return fmt.Errorf("failed to send confirmation to %s: %w", to.Address, err)
	}

	m.logger.WithFields(logrus.Fields{
		"user_id":            msg.Applicant.ID,
		"application_number": msg.ApplicationNumber,
	}).Info("confirmation email sent")

	return nil
}

// RenderConfirmation renders the HTML body of the confirmation email.
func (m *Mailer) RenderConfirmation(msg *admissions.ApplicationConfirmation) ([]byte, error) {
	data := confirmationData{
		School:            m.school,
		ApplicantName:     msg.Applicant.FullName(),
		Email:             msg.Applicant.Email,
		ApplicationNumber: msg.ApplicationNumber,
		SubmittedAt:       submittedAt(msg.Application),
		Categories:        msg.Categories,
	}

	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, "confirmation.html", data); err != nil {
		return nil, fmt.Errorf("render confirmation: %w", err)
	}
	return buf.Bytes(), nil
}

type passwordResetData struct {
	School    string
	Name      string
	Email     string
	Link      string
	ExpiresAt string
}

func (m *Mailer) SendPasswordReset(ctx context.Context, user *types.User, link string, expiresAt time.Time) error {
	if user == nil || user.Email == "" {
		return fmt.Errorf("password reset has no recipient")
	}

	data := passwordResetData{
		School:    m.school,
		Name:      user.FullName(),
		Email:     user.Email,
		Link:      link,
		ExpiresAt: expiresAt.Format(submittedDateLayout),
	}

	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, "password_reset.html", data); err != nil {
		return fmt.Errorf("render password reset: %w", err)
	}

	to := mail.Address{Name: user.FullName(), Address: user.Email}
	raw := buildMessage(m.from, to, "Password Reset Request", buf.Bytes())
	if err := m.sender.Send(ctx, m.from.Address, []string{to.Address}, raw); err != nil {
		return fmt.Errorf("failed to send password reset to %s: %w", to.Address, err)
	}

	m.logger.WithField("user_id", user.ID).Info("password reset email sent")
	return nil
}

func submittedAt(app *types.Application) string {
	if app == nil {
		return "Not available"
	}
	if app.SubmissionDate != nil {
		return app.SubmissionDate.Format(submittedDateLayout)
	}
	if !app.CreatedAt.IsZero() {
		return app.CreatedAt.Format(submittedDateLayout)
	}
	return "Not available"
}

func buildMessage(from, to mail.Address, subject string, body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}
