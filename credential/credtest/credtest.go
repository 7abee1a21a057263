// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package credtest simulates a platform authenticator for tests.
package credtest

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"testing"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotbox/credential"
	"github.com/danielhkuo/ballotbox/models"
)

// Authenticator holds one private key and its signature counter
type Authenticator struct {
	t            *testing.T
	Algorithm    string
	CredentialID string
	SignCount    uint32

	ecKey *ecdsa.PrivateKey
	edKey ed25519.PrivateKey
}

func New(t *testing.T, alg string) *Authenticator {
	t.Helper()

	a := &Authenticator{t: t, Algorithm: alg, CredentialID: uuid.NewString()}
	switch alg {
	case models.AlgES256:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			t.Fatalf("failed to generate P-256 key: %v", err)
		}
		a.ecKey = key
	case models.AlgEdDSA:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("failed to generate ed25519 key: %v", err)
		}
		a.edKey = key
	default:
		t.Fatalf("unsupported test algorithm %q", alg)
	}
	return a
}

// PublicKey returns the wire encoding of the public key
func (a *Authenticator) PublicKey() string {
	a.t.Helper()
	if a.ecKey != nil {
		der, err := x509.MarshalPKIXPublicKey(&a.ecKey.PublicKey)
		if err != nil {
			a.t.Fatalf("failed to marshal public key: %v", err)
		}
		return credential.EncodeBase64(der)
	}
	return credential.EncodeBase64(a.edKey.Public().(ed25519.PublicKey))
}

func (a *Authenticator) sign(msg []byte) string {
	a.t.Helper()
	if a.ecKey != nil {
		digest := sha256.Sum256(msg)
		sig, err := ecdsa.SignASN1(rand.Reader, a.ecKey, digest[:])
		if err != nil {
			a.t.Fatalf("failed to sign: %v", err)
		}
		return credential.EncodeBase64(sig)
	}
	return credential.EncodeBase64(ed25519.Sign(a.edKey, msg))
}

func (a *Authenticator) challenge(opts models.CredentialOptions) []byte {
	a.t.Helper()
	raw, err := credential.DecodeBase64(opts.Challenge)
	if err != nil {
		a.t.Fatalf("bad challenge: %v", err)
	}
	return raw
}

// Attest answers a registration challenge
func (a *Authenticator) Attest(opts models.CredentialOptions) models.Attestation {
	a.t.Helper()
	return models.Attestation{
		ChallengeID:  opts.ChallengeID,
		CredentialID: a.CredentialID,
		PublicKey:    a.PublicKey(),
		Algorithm:    a.Algorithm,
		Signature:    a.sign(a.challenge(opts)),
	}
}

// Assert answers a login challenge, advancing the counter
func (a *Authenticator) Assert(opts models.CredentialOptions) models.Assertion {
	a.t.Helper()
	a.SignCount++
	return models.Assertion{
		ChallengeID:  opts.ChallengeID,
		CredentialID: a.CredentialID,
		SignCount:    a.SignCount,
		Signature:    a.sign(credential.SignedMessage(a.challenge(opts), a.SignCount)),
	}
}
