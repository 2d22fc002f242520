package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/sirupsen/logrus"
)

type SMTPSender struct {
	addr string
	auth smtp.Auth
}

func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	s := &SMTPSender{addr: net.JoinHostPort(host, strconv.Itoa(port))}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, from, to, msg); err != nil {
		return fmt.Errorf("smtp send via %s: %w", s.addr, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used when
// no SMTP host is configured.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, from string, to []string, msg []byte) error {
	s.logger.WithFields(logrus.Fields{
		"from":  from,
		"to":    to,
		"bytes": len(msg),
	}).Info("smtp not configured, email not delivered")
	return nil
}
