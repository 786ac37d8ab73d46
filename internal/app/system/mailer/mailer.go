// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Sender delivers an email. Mailer sends over SMTP; LogSender only logs.
type Sender interface {
	Send(email Email) error
}

// Notify sends email and logs, rather than returns, a failure. It is used
// for notifications that follow a completed database write.
func Notify(s Sender, log *zap.Logger, email Email) {
	if s == nil {
		return
	}
	if err := s.Send(email); err != nil {
		log.Warn("notification email not sent",
			zap.String("to", email.To),
			zap.String("subject", email.Subject),
			zap.Error(err))
	}
}

// Notifier carries what notification emails need besides their recipient:
// the sender, the application name and the frontend login link.
type Notifier struct {
	Sender   Sender
	AppName  string
	LoginURL string
	Log      *zap.Logger
}

// Notify sends email through n.Sender, logging a failure. It reports
// whether the email went out.
func (n Notifier) Notify(email Email) bool {
	if n.Sender == nil {
		return false
	}
	if err := n.Sender.Send(email); err != nil {
		if n.Log != nil {
			n.Log.Warn("notification email not sent",
				zap.String("to", email.To),
				zap.String("subject", email.Subject),
				zap.Error(err))
		}
		return false
	}
	return true
}

// LogSender writes emails to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogSender struct {
	Log *zap.Logger
}

// Send implements Sender.
func (l LogSender) Send(email Email) error {
	l.Log.Info("email (not sent, SMTP not configured)",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("body", email.TextBody))
	return nil
}

// Mailer sends emails via SMTP.
type Mailer struct {
	host     string
	port     int
	user     string
	pass     string
	from     string
	fromName string
	log      *zap.Logger
}

// Config holds the configuration for creating a Mailer.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// New creates a new Mailer with the given configuration.
func New(cfg Config, log *zap.Logger) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		pass:     cfg.Pass,
		from:     cfg.From,
		fromName: cfg.FromName,
		log:      log,
	}
}

// FromName returns the configured sender display name.
// This is the application name used in email templates.
func (m *Mailer) FromName() string {
	return m.fromName
}

// NewSender returns an SMTP Mailer when cfg has a host, otherwise a LogSender.
func NewSender(cfg Config, log *zap.Logger) Sender {
	if cfg.Host == "" {
		return LogSender{Log: log}
	}
	return New(cfg, log)
}

// Email represents an email to be sent.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Send sends an email. If HTMLBody is provided, sends a multipart email with both
// plain text and HTML versions.
func (m *Mailer) Send(email Email) error {
	from := m.from
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}

	var msg bytes.Buffer

	// Headers
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if email.HTMLBody != "" {
		// Multipart email with both text and HTML
		boundary := randomBoundary()
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
		msg.WriteString("\r\n")

		// Plain text part
		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.TextBody)
		msg.WriteString("\r\n")

		// HTML part
		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.HTMLBody)
		msg.WriteString("\r\n")

		// End boundary
		msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	} else {
		// Plain text only
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.TextBody)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var auth smtp.Auth
	if m.user != "" && m.pass != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	err := smtp.SendMail(addr, auth, m.from, []string{email.To}, msg.Bytes())
	if err != nil {
		m.log.Error("failed to send email",
			zap.String("to", email.To),
			zap.String("subject", email.Subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.log.Info("email sent",
		zap.String("to", email.To),
		zap.String("subject", email.Subject))

	return nil
}

// randomBoundary generates a random boundary string for multipart emails.
func randomBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	return "----=_Part_" + hex.EncodeToString(b)
}
