// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation, code hashing, and session tokens.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# Tokens

Random URL-safe secrets (challenges, nonces):

	token, err := auth.GenerateToken(32)

# One-Time Codes

Six-digit codes are drawn uniformly from crypto/rand:

	code, err := auth.GenerateNumericCode(6)

Codes are never stored in plaintext. HashCode binds the code to its
address and purpose under an HMAC-SHA256 key:

	hash := auth.HashCode(address, purpose, code, salt)

# Sessions

Sessions are HS256 JWTs (github.com/golang-jwt/jwt/v5) valid for one hour:

	sessions := auth.NewSessions(cfg.SessionSecret)
	session, err := sessions.Issue(voter)
	session, err = sessions.Parse(token)  // ErrSessionInvalid once expired

Parse checks expiry against the current clock on every call, so holders of a
token can reach the ballot directly without any server-side login state.
*/
package auth
