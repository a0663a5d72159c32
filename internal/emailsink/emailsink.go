// Package emailsink composes and delivers alert notification emails over SMTP.
package emailsink

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/geo"
)

// Config holds SMTP delivery settings.
type Config struct {
	SMTPServer      string
	SMTPPort        int
	SenderEmail     string
	SenderPassword  string
	RecipientEmails []string
	Timeout         time.Duration
}

// Sink delivers alert notifications over SMTP, matching the reference
// implementation's MIME-text composition.
type Sink struct {
	cfg Config
}

// New builds a Sink. Configured returns false (and Send returns an error
// without sending) when sender credentials or recipients are missing.
func New(cfg Config) *Sink {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sink{cfg: cfg}
}

// Configured reports whether enough settings are present to attempt delivery.
func (s *Sink) Configured() bool {
	return s.cfg.SenderEmail != "" && s.cfg.SenderPassword != "" && len(s.cfg.RecipientEmails) > 0
}

// Message is the composed alert notification.
type Message struct {
	Kind          string
	SourceIP      string
	DestinationIP string
	Ports         string
	Details       string
	Geolocation   *geo.Record
}

// Compose renders the plain-text email body and subject, matching the
// reference implementation's format.
func Compose(msg Message) (subject, body string) {
	subject = fmt.Sprintf("Security Alert: %s", msg.Kind)

	geoInfo := ""
	if msg.Geolocation != nil {
		geoInfo = fmt.Sprintf("\nLocation: %s, %s", orNA(msg.Geolocation.City), orNA(msg.Geolocation.Country))
		if msg.Geolocation.ISP != "" {
			geoInfo += fmt.Sprintf("\nISP: %s", msg.Geolocation.ISP)
		}
	}

	body = fmt.Sprintf(`Threat Detected: %s
Source IP: %s
Destination IP: %s
Ports: %s
Details: %s
Time: %s%s
`, msg.Kind, msg.SourceIP, orNA(msg.DestinationIP), orNA(msg.Ports), msg.Details, time.Now().Format(time.RFC3339), geoInfo)

	return subject, body
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Send delivers msg over SMTP with STARTTLS, bounded by ctx and the sink's
// configured timeout. A delivery failure is returned to the caller, which
// logs it and continues; never fatal.
func (s *Sink) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return fmt.Errorf("email sink not configured")
	}

	subject, body := Compose(msg)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", s.cfg.SenderEmail))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(s.cfg.RecipientEmails, ", ")))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPServer, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SenderEmail, s.cfg.SenderPassword, s.cfg.SMTPServer)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.cfg.SenderEmail, s.cfg.RecipientEmails, []byte(sb.String()))
	}()

	timeout := s.cfg.Timeout
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("smtp send to %s timed out after %s", addr, timeout)
	}
}
