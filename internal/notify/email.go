// Package notify delivers outbound email over SMTP. Delivery is
// best-effort: callers treat Send failures as log-and-continue.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPMailer struct {
	addr     string // host:port
	host     string
	from     string
	username string
	password string
}

// NewSMTPMailer returns nil when addr is empty so callers can wire a
// nil Mailer to disable email entirely.
func NewSMTPMailer(addr, from, username, password string) *SMTPMailer {
	if addr == "" {
		return nil
	}
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	return &SMTPMailer{addr: addr, host: host, from: from, username: username, password: password}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		m.from, to, subject, body)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(m.addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
