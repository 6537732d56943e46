package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	msg := string(buildMessage("board@example.com", "ann@example.com", "Reset\r\nBcc: x@y", "line1\nline2", at))

	for _, want := range []string{
		"From: board@example.com\r\n",
		"To: ann@example.com\r\n",
		"Subject: ResetBcc: x@y\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n\r\nline1\r\nline2",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message lacks %q:\n%s", want, msg)
		}
	}
}

func TestSMTPMailerBadAddr(t *testing.T) {
	m := SMTPMailer{Addr: "no-port", From: "a@b"}
	if err := m.Send(context.Background(), "c@d", "s", "b"); err == nil {
		t.Error("expected addr error")
	}
}
