// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/tally"
)

// DefaultKeepAlive is how often an idle results stream sends a comment line
const DefaultKeepAlive = 20 * time.Second

type ResultsHandler struct {
	agg       *tally.Aggregator
	keepAlive time.Duration
}

func NewResultsHandler(agg *tally.Aggregator) *ResultsHandler {
	return &ResultsHandler{agg: agg, keepAlive: DefaultKeepAlive}
}

// GetResults handles GET /results
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.agg.Snapshot()
	if !ok {
		var err error
		snap, _, err = h.agg.Refresh(r.Context())
		if err != nil {
			writeError(w, err, "compute results")
			return
		}
	}
	middleware.JSONResponse(w, http.StatusOK, snap)
}

// Stream handles GET /results/stream as Server-Sent Events. Each event is a
// full snapshot, so a reconnecting client needs no replay.
func (h *ResultsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	updates, cancel := h.agg.Subscribe()
	defer cancel()
	if _, ok := h.agg.Snapshot(); !ok {
		h.agg.Notify()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				slog.Error("failed to encode tally", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: tally\ndata: %s\n\n", snap.Version, data); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
