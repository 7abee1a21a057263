// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connections

Open selects the driver from Config.DatabaseType:

  - postgres: github.com/lib/pq, pooled connections
  - sqlite: modernc.org/sqlite, single connection, WAL and foreign keys on

	conn, err := db.Open(cfg)

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The DDL only uses types and defaults both engines understand.

# Tables

  - student: roster, read-only to the application
  - voter: one row per registered voter (UNIQUE matric_number, UNIQUE email)
  - local_credential: device-bound public key per voter
  - one_time_code: hashed single-use codes with expiry
  - credential_challenge: single-use signing challenges
  - auth_flow: persisted registration/login state machines
  - election_position, candidate: ballot contents, managed by admin tooling
  - ballot: one row per position per submission, keyed by a random receipt

# Relationships

	voter 1──0..1 local_credential
	election_position 1──* candidate
	election_position 1──* ballot
	candidate 0..1──* ballot

Ballots hold no reference to a voter.

# Constraint Errors

UniqueViolation classifies duplicate-key errors from either driver:

	if detail, ok := db.UniqueViolation(err); ok && strings.Contains(detail, "email") {
		return models.ErrContactAlreadyUsed
	}
*/
package db
