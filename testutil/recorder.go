// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"context"
	"sync"

	"github.com/danielhkuo/ballotbox/notify"
)

// Recorder is a notify.Sender that keeps delivered messages in memory
type Recorder struct {
	mu       sync.Mutex
	messages []notify.Message
	fail     error
}

func (r *Recorder) Send(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Last returns the most recent message sent to address
func (r *Recorder) Last(address string) (notify.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Address == address {
			return r.messages[i], true
		}
	}
	return notify.Message{}, false
}

// Count returns how many messages were delivered
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// SetFail makes subsequent sends fail with err (nil restores delivery)
func (r *Recorder) SetFail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}
