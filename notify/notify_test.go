// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/ballotbox/models"
)

func TestBody(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		purpose  string
		wantText string
	}{
		{"verification", models.PurposeVerification, "verify your email"},
		{"login", models.PurposeLogin, "sign in"},
		{"reset", models.PurposePasswordReset, "reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := Body(Message{
				Address:   "demo@example.com",
				Code:      "123456",
				Purpose:   tt.purpose,
				ExpiresAt: now.Add(5 * time.Minute),
			}, now)

			if !strings.Contains(body, "123456") {
				t.Errorf("body missing code: %q", body)
			}
			if !strings.Contains(body, tt.wantText) {
				t.Errorf("body missing %q: %q", tt.wantText, body)
			}
			if !strings.Contains(body, "5 minutes from now") {
				t.Errorf("body missing expiry: %q", body)
			}
		})
	}
}

func TestSMTPSenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := SMTPSender{Addr: "127.0.0.1:1", From: "elections@test.local"}
	if err := s.Send(ctx, Message{Address: "a@example.com"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}
