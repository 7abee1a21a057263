// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/models"
)

// BallotHandler serves the ballot session. Every route needs
// "Authorization: Bearer <session token>".
type BallotHandler struct {
	ballots *ballot.Manager
}

func NewBallotHandler(ballots *ballot.Manager) *BallotHandler {
	return &BallotHandler{ballots: ballots}
}

// token returns the bearer token or writes a 401
func token(w http.ResponseWriter, r *http.Request) (string, bool) {
	t := middleware.BearerToken(r)
	if t == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authorization bearer token required")
		return "", false
	}
	return t, true
}

// Session handles GET /session
func (h *BallotHandler) Session(w http.ResponseWriter, r *http.Request) {
	t, ok := token(w, r)
	if !ok {
		return
	}

	session, err := h.ballots.Session(t)
	if err != nil {
		writeError(w, err, "session")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, session)
}

// Positions handles GET /ballot/positions
func (h *BallotHandler) Positions(w http.ResponseWriter, r *http.Request) {
	t, ok := token(w, r)
	if !ok {
		return
	}

	positions, err := h.ballots.ListPositions(r.Context(), t)
	if err != nil {
		writeError(w, err, "list positions")
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}
	middleware.JSONResponse(w, http.StatusOK, positions)
}

// Select handles PUT /ballot/selections
func (h *BallotHandler) Select(w http.ResponseWriter, r *http.Request) {
	t, ok := token(w, r)
	if !ok {
		return
	}

	// Reject a bad session before looking at the body
	if _, err := h.ballots.Session(t); err != nil {
		writeError(w, err, "select candidate")
		return
	}

	var req models.SelectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PositionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "position_id is required")
		return
	}

	resp, err := h.ballots.Select(r.Context(), t, req)
	if err != nil {
		writeError(w, err, "select candidate")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Review handles GET /ballot/review
func (h *BallotHandler) Review(w http.ResponseWriter, r *http.Request) {
	t, ok := token(w, r)
	if !ok {
		return
	}

	resp, err := h.ballots.Review(r.Context(), t)
	if err != nil {
		writeError(w, err, "review ballot")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Submit handles POST /ballot/submit
func (h *BallotHandler) Submit(w http.ResponseWriter, r *http.Request) {
	t, ok := token(w, r)
	if !ok {
		return
	}

	resp, err := h.ballots.Submit(r.Context(), t)
	if err != nil {
		writeError(w, err, "submit ballot")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, resp)
}
