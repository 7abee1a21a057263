// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: sqlite file DSN or PostgreSQL connection string (required)
  - DatabaseType: sqlite (default) or postgres
  - SessionSecret: HMAC key for session tokens (required)
  - CodeSalt: HMAC key for stored one-time codes (required)
  - SMTPAddr, MailFrom: code delivery relay; empty SMTPAddr logs codes
  - TallyInterval: polling fallback for the tally aggregator (default: 5s)

# Environment Variables

Flags fall back to environment variables:

	PORT           → -p
	DATABASE_URL   → -d
	DATABASE_TYPE  → -t
	SESSION_SECRET → --session-secret
	CODE_SALT      → --code-salt
	SMTP_ADDR      → --smtp
	MAIL_FROM      → --mail-from
	TALLY_INTERVAL → --tally-interval

CLI flags take precedence over environment variables. main loads a .env
file (if present) before parsing.
*/
package cliparse
