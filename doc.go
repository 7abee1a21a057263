// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the ballotbox API server.

ballotbox runs a university student election: eligible students register
against the roster, verify with an emailed one-time code or a device-bound
credential, cast one ballot, and watch the tally update live.

# Starting the Server

Configuration comes from flags, environment variables, or a .env file:

	DATABASE_URL=election.db SESSION_SECRET=... CODE_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - SESSION_SECRET (--session-secret): HMAC key for session tokens
  - CODE_SALT (--code-salt): Secret mixed into one-time code hashes

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - SMTP_ADDR (--smtp): Relay for codes; when empty codes are logged
  - MAIL_FROM (--mail-from): Sender address for codes
  - TALLY_INTERVAL (--tally-interval): Fallback tally refresh period

# Architecture

  - handlers: HTTP request handlers (registration, login, ballot, results)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - flow: Registration and login state machines
  - verify: Code and local credential verifiers behind one interface
  - otp, credential: One-time codes and device credentials
  - roster, voters: Eligibility lookup and the voter store
  - ballot: Pending selections and atomic ballot submission
  - tally: Live aggregation and change fan-out
  - models, auth, db, cliparse, notify: Shared types and plumbing

The cmd/tallyview tool prints the current tally in a terminal.
*/
package main
