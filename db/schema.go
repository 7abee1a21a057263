// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The DDL sticks to the subset shared by PostgreSQL and SQLite.
const schema = `
-- Roster (seeded by the admin import tool)
CREATE TABLE IF NOT EXISTS student (
    matric_number TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    department TEXT NOT NULL DEFAULT '',
    level TEXT NOT NULL DEFAULT ''
);

-- Voters
CREATE TABLE IF NOT EXISTS voter (
    id TEXT PRIMARY KEY,
    matric_number TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    department TEXT NOT NULL DEFAULT '',
    level TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL UNIQUE,
    verified BOOLEAN NOT NULL DEFAULT FALSE,
    has_voted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_voter_has_voted ON voter(has_voted);

-- Local credentials (one per voter)
CREATE TABLE IF NOT EXISTS local_credential (
    voter_id TEXT PRIMARY KEY REFERENCES voter(id) ON DELETE CASCADE,
    credential_id TEXT NOT NULL UNIQUE,
    public_key TEXT NOT NULL,
    algorithm TEXT NOT NULL CHECK (algorithm IN ('ES256', 'EdDSA')),
    sign_count BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- One-time codes
CREATE TABLE IF NOT EXISTS one_time_code (
    id TEXT PRIMARY KEY,
    address TEXT NOT NULL,
    purpose TEXT NOT NULL CHECK (purpose IN ('verification', 'login', 'password_reset')),
    code_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    failed_attempts INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_one_time_code_lookup ON one_time_code(address, purpose, code_hash);

-- Local credential challenges
CREATE TABLE IF NOT EXISTS credential_challenge (
    id TEXT PRIMARY KEY,
    subject TEXT NOT NULL,
    purpose TEXT NOT NULL CHECK (purpose IN ('register', 'login')),
    challenge TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    used BOOLEAN NOT NULL DEFAULT FALSE
);

-- Registration and login flows
CREATE TABLE IF NOT EXISTS auth_flow (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL CHECK (kind IN ('registration', 'login')),
    state TEXT NOT NULL,
    payload TEXT NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    expires_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- Positions and candidates (managed by admin tooling)
CREATE TABLE IF NOT EXISTS election_position (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    display_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    position_id TEXT NOT NULL REFERENCES election_position(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    department TEXT NOT NULL DEFAULT '',
    manifesto TEXT NOT NULL DEFAULT '',
    photo_url TEXT NOT NULL DEFAULT '',
    display_order INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_candidate_position_id ON candidate(position_id);

-- Ballots (no reference to voter identity)
CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    position_id TEXT NOT NULL REFERENCES election_position(id),
    candidate_id TEXT REFERENCES candidate(id),
    receipt TEXT NOT NULL,
    cast_at TIMESTAMP NOT NULL,
    UNIQUE (position_id, receipt)
);

CREATE INDEX IF NOT EXISTS idx_ballot_position_id ON ballot(position_id);
`
