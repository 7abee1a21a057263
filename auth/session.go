// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/danielhkuo/ballotbox/models"
)

// SessionTTL is how long an authenticated ballot session stays valid
const SessionTTL = time.Hour

// Claims carried inside a session token
type Claims struct {
	MatricNumber string `json:"mat"`
	Name         string `json:"name"`
	jwt.RegisteredClaims
}

// Sessions issues and validates HS256 session tokens
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: SessionTTL, now: time.Now}
}

// WithClock overrides the time source, for tests
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}

// Issue creates a session scoped to one voter
func (s *Sessions) Issue(voter models.VoterRecord) (models.Session, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)
	id := uuid.NewString()

	claims := &Claims{
		MatricNumber: voter.MatricNumber,
		Name:         voter.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   voter.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to sign session: %w", err)
	}

	return models.Session{
		Token:        signed,
		ID:           id,
		MatricNumber: voter.MatricNumber,
		Name:         voter.Name,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
	}, nil
}

// Parse validates a token, including expiry, against the current clock
func (s *Sessions) Parse(token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, models.ErrSessionInvalid
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return models.Session{}, errors.Join(models.ErrSessionInvalid, err)
	}

	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || c.MatricNumber == "" {
		return models.Session{}, models.ErrSessionInvalid
	}

	return models.Session{
		Token:        token,
		ID:           c.ID,
		MatricNumber: c.MatricNumber,
		Name:         c.Name,
		IssuedAt:     c.IssuedAt.Time,
		ExpiresAt:    c.ExpiresAt.Time,
	}, nil
}
