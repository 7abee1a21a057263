// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/ballotbox/models"
)

// Message is one out-of-band code delivery
type Message struct {
	Address   string
	Code      string
	Purpose   string
	ExpiresAt time.Time
}

// Sender delivers codes. Errors are reported back to the caller.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Body renders the human-readable text of a code message
func Body(msg Message, now time.Time) string {
	var action string
	switch msg.Purpose {
	case models.PurposeLogin:
		action = "sign in to the election portal"
	case models.PurposePasswordReset:
		action = "reset your election portal access"
	default:
		action = "verify your email for the student election"
	}

	return fmt.Sprintf("Your code to %s is %s.\nIt expires %s and can only be used once.\n",
		action, msg.Code, humanize.RelTime(msg.ExpiresAt, now, "ago", "from now"))
}

// LogSender writes codes to the structured log, for development
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.Info("one-time code issued",
		"address", msg.Address,
		"purpose", msg.Purpose,
		"code", msg.Code,
		"expires_at", msg.ExpiresAt,
	)
	return nil
}

// SMTPSender relays codes through a plain SMTP server
type SMTPSender struct {
	Addr string
	From string
	Auth smtp.Auth
}

func (s SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Address)
	fmt.Fprintf(&b, "Subject: Your election code\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(Body(msg, time.Now()), "\n", "\r\n"))

	if err := smtp.SendMail(s.Addr, s.Auth, s.From, []string{msg.Address}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", s.Addr, err)
	}
	return nil
}
