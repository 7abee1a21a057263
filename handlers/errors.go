// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/models"
)

// errorStatus maps domain errors to HTTP status codes, first match wins
var errorStatus = []struct {
	err    error
	status int
}{
	{models.ErrInvalidIdentifier, http.StatusBadRequest},
	{models.ErrInvalidContact, http.StatusBadRequest},
	{models.ErrConsentRequired, http.StatusBadRequest},
	{models.ErrInvalidMethod, http.StatusBadRequest},
	{models.ErrInvalidSelection, http.StatusBadRequest},
	{models.ErrUnsupported, http.StatusBadRequest},

	{models.ErrInvalidOrExpired, http.StatusUnauthorized},
	{models.ErrCredentialRejected, http.StatusUnauthorized},
	{models.ErrSessionInvalid, http.StatusUnauthorized},

	{models.ErrNotEligible, http.StatusForbidden},
	{models.ErrNotVerified, http.StatusForbidden},

	{models.ErrNotRegistered, http.StatusNotFound},
	{models.ErrFlowNotFound, http.StatusNotFound},

	{models.ErrAlreadyRegistered, http.StatusConflict},
	{models.ErrContactAlreadyUsed, http.StatusConflict},
	{models.ErrAlreadyVoted, http.StatusConflict},
	{models.ErrInvalidState, http.StatusConflict},
	{models.ErrFlowConflict, http.StatusConflict},

	{models.ErrEmptyBallot, http.StatusUnprocessableEntity},

	{models.ErrDeliveryFailed, http.StatusBadGateway},
}

// writeError responds with the status for a domain error. Anything else is
// a storage or transport failure: it is logged and reported as retryable.
func writeError(w http.ResponseWriter, err error, op string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			if e.status == http.StatusBadGateway {
				slog.Warn(op+" failed", "error", err)
			}
			middleware.ErrorResponse(w, e.status, e.err.Error())
			return
		}
	}

	slog.Error(op+" failed", "error", err)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "Temporary failure, please retry")
}
