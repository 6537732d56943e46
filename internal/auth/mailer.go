package auth

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// LogMailer writes mails to the log. Used when no SMTP server is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("mail to=%s subject=%q\n%s", to, subject, body)
	return nil
}

// SMTPMailer sends plain text mail through an SMTP relay.
type SMTPMailer struct {
	Addr     string
	User     string
	Password string
	From     string
}

func (m SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	host, _, err := net.SplitHostPort(m.Addr)
	if err != nil {
		return fmt.Errorf("smtp addr: %w", err)
	}
	var a smtp.Auth
	if m.User != "" {
		a = smtp.PlainAuth("", m.User, m.Password, host)
	}
	msg := buildMessage(m.From, to, subject, body, time.Now())

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(m.Addr, a, m.From, []string{to}, msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", "", "\n", "").Replace(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
