// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/danielhkuo/ballotbox/notify"
)

var _ notify.Sender = (*Recorder)(nil)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	if err := r.Send(ctx, notify.Message{Address: "a@example.com", Code: "111111"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Send(ctx, notify.Message{Address: "a@example.com", Code: "222222"}); err != nil {
		t.Fatal(err)
	}

	last, ok := r.Last("a@example.com")
	if !ok || last.Code != "222222" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
	if _, ok := r.Last("b@example.com"); ok {
		t.Error("Last() found message for unknown address")
	}

	r.SetFail(errors.New("mailbox full"))
	if err := r.Send(ctx, notify.Message{Address: "a@example.com"}); err == nil {
		t.Error("expected failing send")
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}
