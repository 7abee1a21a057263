// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verify

import (
	"context"

	"github.com/danielhkuo/ballotbox/credential"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/otp"
	"github.com/danielhkuo/ballotbox/voters"
)

// Subject is who is being verified
type Subject struct {
	VoterID      string
	MatricNumber string
	Name         string
	Email        string
	Credential   *models.LocalCredential
	Capabilities models.Capabilities
}

// Proof is what the client sends back to finish a verification
type Proof struct {
	Code        string
	Attestation *models.Attestation
	Assertion   *models.Assertion
}

// Started describes what the client must do next
type Started struct {
	Challenge *models.CredentialOptions
	CodeSent  *models.CodeNotice
}

// Verifier proves control of an identity through one channel
type Verifier interface {
	Method() string
	// Available reports whether this channel can be offered to subj right now
	Available(subj Subject) bool
	Begin(ctx context.Context, subj Subject) (Started, error)
	// Finish returns a newly enrolled credential, or nil
	Finish(ctx context.Context, subj Subject, proof Proof) (*models.LocalCredential, error)
}

// CodeVerifier sends a one-time code to the subject's email
type CodeVerifier struct {
	codes   *otp.Service
	purpose string
}

func NewCodeVerifier(codes *otp.Service, purpose string) *CodeVerifier {
	return &CodeVerifier{codes: codes, purpose: purpose}
}

func (v *CodeVerifier) Method() string { return models.MethodCode }

func (v *CodeVerifier) Available(subj Subject) bool { return subj.Email != "" }

func (v *CodeVerifier) Begin(ctx context.Context, subj Subject) (Started, error) {
	rec, err := v.codes.Issue(ctx, subj.Email, v.purpose)
	if rec.ID == "" {
		return Started{}, err
	}
	// A stored code whose delivery failed still returns the notice with the error
	return Started{CodeSent: &models.CodeNotice{Address: MaskEmail(subj.Email), ExpiresAt: rec.ExpiresAt}}, err
}

func (v *CodeVerifier) Finish(ctx context.Context, subj Subject, proof Proof) (*models.LocalCredential, error) {
	if err := v.codes.Validate(ctx, subj.Email, v.purpose, proof.Code); err != nil {
		return nil, err
	}
	return nil, nil
}

// LocalCredentialVerifier checks a device-bound key. In enroll mode it
// registers a new credential; otherwise it authenticates the stored one.
type LocalCredentialVerifier struct {
	creds  *credential.Service
	voters *voters.Store
	enroll bool
}

func NewEnrollVerifier(creds *credential.Service) *LocalCredentialVerifier {
	return &LocalCredentialVerifier{creds: creds, enroll: true}
}

func NewAssertVerifier(creds *credential.Service, store *voters.Store) *LocalCredentialVerifier {
	return &LocalCredentialVerifier{creds: creds, voters: store}
}

func (v *LocalCredentialVerifier) Method() string { return models.MethodLocalCredential }

func (v *LocalCredentialVerifier) Available(subj Subject) bool {
	if !credential.Supported(subj.Capabilities) {
		return false
	}
	return v.enroll || (subj.Credential != nil && subj.Credential.CredentialID != "")
}

func (v *LocalCredentialVerifier) Begin(ctx context.Context, subj Subject) (Started, error) {
	if !v.Available(subj) {
		return Started{}, models.ErrUnsupported
	}

	var (
		opts models.CredentialOptions
		err  error
	)
	if v.enroll {
		opts, err = v.creds.BeginRegistration(ctx, subj.MatricNumber, subj.Name, subj.Capabilities)
	} else {
		opts, err = v.creds.BeginAuthentication(ctx, subj.MatricNumber, *subj.Credential)
	}
	if err != nil {
		return Started{}, err
	}
	return Started{Challenge: &opts}, nil
}

func (v *LocalCredentialVerifier) Finish(ctx context.Context, subj Subject, proof Proof) (*models.LocalCredential, error) {
	if v.enroll {
		if proof.Attestation == nil {
			return nil, models.ErrCredentialRejected
		}
		cred, err := v.creds.FinishRegistration(ctx, subj.MatricNumber, *proof.Attestation)
		if err != nil {
			return nil, err
		}
		return &cred, nil
	}

	if proof.Assertion == nil || subj.Credential == nil {
		return nil, models.ErrCredentialRejected
	}
	if err := v.creds.FinishAuthentication(ctx, subj.MatricNumber, *subj.Credential, *proof.Assertion); err != nil {
		return nil, err
	}
	if err := v.voters.AdvanceSignCount(ctx, subj.VoterID, proof.Assertion.SignCount); err != nil {
		return nil, err
	}
	return nil, nil
}

// Offer lists the methods available to subj, preferring earlier verifiers
func Offer(subj Subject, verifiers ...Verifier) []string {
	var methods []string
	for _, v := range verifiers {
		if v.Available(subj) {
			methods = append(methods, v.Method())
		}
	}
	return methods
}

// MaskEmail hides most of the local part: demo@example.com → d***@example.com
func MaskEmail(email string) string {
	at := -1
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			at = i
			break
		}
	}
	if at <= 0 {
		return email
	}
	return email[:1] + "***" + email[at:]
}
