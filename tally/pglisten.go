// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/danielhkuo/ballotbox/db"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPing         = 90 * time.Second
)

// ListenPostgres forwards ballot_cast notifications to the aggregator until
// ctx is done. A reconnect also triggers a refresh since notifications may
// have been missed while disconnected.
func ListenPostgres(ctx context.Context, dsn string, agg *Aggregator) error {
	listener := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Warn("ballot listener problem", "event", ev, "error", err)
			}
		})
	defer listener.Close()

	if err := listener.Listen(db.BallotChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", db.BallotChannel, err)
	}
	slog.Info("listening for ballot notifications", "channel", db.BallotChannel)

	ping := time.NewTicker(listenerPing)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			if n != nil {
				slog.Debug("ballot notification", "position_id", n.Extra)
			}
			agg.Notify()
		case <-ping.C:
			go listener.Ping()
		}
	}
}
