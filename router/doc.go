// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the ballotbox API.

# Route Registration

NewRouter builds the services and returns a configured http.ServeMux:

	agg := tally.New(db, cfg.TallyInterval)
	mux := router.NewRouter(db, cfg, notify.LogSender{}, agg)

The caller owns the aggregator so it can run its refresh loop.

# Endpoints

Health:

	GET /health

Registration:

	POST /register                    - Start a flow
	GET  /register/{flow}             - Current state
	POST /register/{flow}/consent     - Record consent
	POST /register/{flow}/identifier  - Matriculation number
	POST /register/{flow}/contact     - Email address
	POST /register/{flow}/method      - Choose verification
	POST /register/{flow}/resend-code - Send another code
	POST /register/{flow}/verify-code - Verify code
	POST /register/{flow}/credential  - Finish local credential
	POST /register/{flow}/complete    - Retry the final write
	POST /register/{flow}/start-over  - Reset to consent

Login:

	POST /login                    - Start a flow
	GET  /login/{flow}             - Current state
	POST /login/{flow}/method      - Choose verification
	POST /login/{flow}/resend-code - Send another code
	POST /login/{flow}/verify-code - Verify code
	POST /login/{flow}/credential  - Finish local credential

Ballot (requires Authorization: Bearer):

	GET  /session           - Session details
	GET  /ballot/positions  - Active positions
	PUT  /ballot/selections - Select or abstain
	GET  /ballot/review     - Review pending ballot
	POST /ballot/submit     - Cast ballot

Results (public):

	GET /results        - Current tally
	GET /results/stream - Server-Sent Events
*/
package router
