// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package credential

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"database/sql"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/models"
)

// ChallengeTTL bounds how long the platform has to sign a challenge
const ChallengeTTL = 2 * time.Minute

// Challenge purposes
const (
	PurposeRegister = "register"
	PurposeLogin    = "login"
)

// Algorithms accepted from platform authenticators, in preference order
var Algorithms = []string{models.AlgES256, models.AlgEdDSA}

type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock overrides the time source, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Supported reports whether the client can hold a local credential.
// Embedded browsers (in-app webviews, iframes) are refused even when an
// authenticator is present.
func Supported(caps models.Capabilities) bool {
	return caps.PlatformAuthenticator && !caps.Embedded
}

func supportedAlgorithm(alg string) bool {
	for _, a := range Algorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// SignedMessage is what the authenticator signs for a login assertion
func SignedMessage(challenge []byte, signCount uint32) []byte {
	msg := make([]byte, len(challenge)+4)
	copy(msg, challenge)
	binary.BigEndian.PutUint32(msg[len(challenge):], signCount)
	return msg
}

// BeginRegistration issues a challenge for a new credential.
// Returns ErrUnsupported when the client cannot create one.
func (s *Service) BeginRegistration(ctx context.Context, subject, displayName string, caps models.Capabilities) (models.CredentialOptions, error) {
	if !Supported(caps) {
		return models.CredentialOptions{}, models.ErrUnsupported
	}

	opts, err := s.issueChallenge(ctx, subject, PurposeRegister)
	if err != nil {
		return models.CredentialOptions{}, err
	}
	opts.DisplayName = displayName
	return opts, nil
}

// FinishRegistration checks proof of possession for a freshly generated key
// and returns the descriptor to attach to the voter.
func (s *Service) FinishRegistration(ctx context.Context, subject string, att models.Attestation) (models.LocalCredential, error) {
	if !supportedAlgorithm(att.Algorithm) {
		return models.LocalCredential{}, models.ErrUnsupported
	}
	if att.CredentialID == "" || att.PublicKey == "" {
		return models.LocalCredential{}, models.ErrCredentialRejected
	}

	challenge, err := s.consumeChallenge(ctx, att.ChallengeID, subject, PurposeRegister)
	if err != nil {
		return models.LocalCredential{}, err
	}

	if err := verifySignature(att.Algorithm, att.PublicKey, challenge, att.Signature); err != nil {
		return models.LocalCredential{}, err
	}

	return models.LocalCredential{
		CredentialID: att.CredentialID,
		PublicKey:    att.PublicKey,
		Algorithm:    att.Algorithm,
		SignCount:    0,
		CreatedAt:    s.now().UTC(),
	}, nil
}

// BeginAuthentication issues a login challenge for a registered credential
func (s *Service) BeginAuthentication(ctx context.Context, subject string, cred models.LocalCredential) (models.CredentialOptions, error) {
	opts, err := s.issueChallenge(ctx, subject, PurposeLogin)
	if err != nil {
		return models.CredentialOptions{}, err
	}
	opts.CredentialID = cred.CredentialID
	opts.Algorithms = []string{cred.Algorithm}
	return opts, nil
}

// FinishAuthentication verifies a signed challenge against the stored key.
// The assertion counter must be ahead of the stored one; persisting the new
// counter is left to the caller.
func (s *Service) FinishAuthentication(ctx context.Context, subject string, cred models.LocalCredential, as models.Assertion) error {
	if as.CredentialID != cred.CredentialID {
		return models.ErrCredentialRejected
	}

	challenge, err := s.consumeChallenge(ctx, as.ChallengeID, subject, PurposeLogin)
	if err != nil {
		return err
	}

	if as.SignCount <= cred.SignCount {
		return models.ErrCredentialRejected
	}

	return verifySignature(cred.Algorithm, cred.PublicKey, SignedMessage(challenge, as.SignCount), as.Signature)
}

func (s *Service) issueChallenge(ctx context.Context, subject, purpose string) (models.CredentialOptions, error) {
	challenge, err := auth.GenerateToken(32)
	if err != nil {
		return models.CredentialOptions{}, err
	}

	now := s.now().UTC()
	opts := models.CredentialOptions{
		ChallengeID: uuid.NewString(),
		Challenge:   challenge,
		Subject:     subject,
		Algorithms:  Algorithms,
		ExpiresAt:   now.Add(ChallengeTTL),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credential_challenge (id, subject, purpose, challenge, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, opts.ChallengeID, subject, purpose, challenge, now, opts.ExpiresAt, false)
	if err != nil {
		return models.CredentialOptions{}, fmt.Errorf("failed to store challenge: %w", err)
	}

	return opts, nil
}

// consumeChallenge marks a live challenge used and returns its raw bytes
func (s *Service) consumeChallenge(ctx context.Context, id, subject, purpose string) ([]byte, error) {
	var encoded string
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT challenge, expires_at FROM credential_challenge
		WHERE id = $1 AND subject = $2 AND purpose = $3 AND used = $4
	`, id, subject, purpose, false).Scan(&encoded, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrCredentialRejected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query challenge: %w", err)
	}
	if !s.now().Before(expiresAt) {
		return nil, models.ErrCredentialRejected
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE credential_challenge SET used = $1 WHERE id = $2 AND used = $3
	`, true, id, false)
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if n != 1 {
		return nil, models.ErrCredentialRejected
	}

	raw, err := DecodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge %s: %w", id, err)
	}
	return raw, nil
}

func verifySignature(alg, publicKey string, msg []byte, signature string) error {
	keyBytes, err := DecodeBase64(publicKey)
	if err != nil {
		return models.ErrCredentialRejected
	}
	sig, err := DecodeBase64(signature)
	if err != nil || len(sig) == 0 {
		return models.ErrCredentialRejected
	}

	switch alg {
	case models.AlgES256:
		parsed, err := x509.ParsePKIXPublicKey(keyBytes)
		if err != nil {
			return models.ErrCredentialRejected
		}
		pub, ok := parsed.(*ecdsa.PublicKey)
		if !ok || pub.Curve.Params().Name != "P-256" {
			return models.ErrCredentialRejected
		}
		digest := sha256.Sum256(msg)
		if !ecdsa.VerifyASN1(pub, digest[:], sig) {
			return models.ErrCredentialRejected
		}
	case models.AlgEdDSA:
		if len(keyBytes) != ed25519.PublicKeySize {
			return models.ErrCredentialRejected
		}
		if !ed25519.Verify(ed25519.PublicKey(keyBytes), msg, sig) {
			return models.ErrCredentialRejected
		}
	default:
		return models.ErrUnsupported
	}
	return nil
}

// DecodeBase64 accepts URL-safe base64 with or without padding
func DecodeBase64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// EncodeBase64 is the unpadded URL-safe form used on the wire
func EncodeBase64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
