// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the ballotbox API.

# Handler Types

Each handler is a thin struct over one service:

  - RegistrationHandler: the registration flow (flow.Registrar)
  - LoginHandler: the login flow (flow.Authenticator)
  - BallotHandler: the ballot session (ballot.Manager)
  - ResultsHandler: live tallies (tally.Aggregator)

	registrationHandler := handlers.NewRegistrationHandler(flow.NewRegistrar(db, codes, creds))

Handlers decode the request, check required fields, call the service and
encode its response. They hold no election logic of their own.

# Registration Flow

A registration flow is created once and then addressed by its ID:

	POST /register                    → Start (state consent)
	POST /register/{flow}/consent     → Consent
	POST /register/{flow}/identifier  → Identifier
	POST /register/{flow}/contact     → Contact
	POST /register/{flow}/method      → Method (code or local_credential)
	POST /register/{flow}/verify-code → VerifyCode (creates the voter)
	POST /register/{flow}/credential  → Credential (creates the voter)

GET /register/{flow} returns the current state, so a client can resume.

# Login Flow

	POST /login                    → Start (offers methods)
	POST /login/{flow}/method      → Method
	POST /login/{flow}/verify-code → VerifyCode (issues a session)
	POST /login/{flow}/credential  → Credential (issues a session)

# Ballot Session

Ballot routes require "Authorization: Bearer <token>" with the token from
a completed login. Selections stay in memory until POST /ballot/submit.

# Errors

Domain errors map to fixed status codes in errors.go:

	400 malformed input, 401 failed verification or bad session,
	403 not eligible or not verified, 404 unknown voter or flow,
	409 state conflicts, 422 empty ballot, 502 code delivery failed

Anything else is logged and returned as a retryable 500.

# Live Results

GET /results/stream is a Server-Sent Events stream. Every event carries
a full TallySnapshot with its version as the event ID.
*/
package handlers
