// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package flow

import (
	"context"
	"database/sql"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/credential"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/otp"
	"github.com/danielhkuo/ballotbox/roster"
	"github.com/danielhkuo/ballotbox/verify"
	"github.com/danielhkuo/ballotbox/voters"
)

// Login states
const (
	StateMethodOffer              = "method_offer"
	StateLocalCredentialChallenge = "local_credential_challenge"
	StateCodeChallenge            = "code_challenge"
	StateAuthenticated            = "authenticated"
)

// Login is the persisted progress of one login flow
type Login struct {
	ID    string `json:"-"`
	State string `json:"-"`

	MatricNumber string              `json:"matric_number"`
	Capabilities models.Capabilities `json:"capabilities"`
	Offered      []string            `json:"offered"`
	Method       string              `json:"method,omitempty"`
	SessionID    string              `json:"session_id,omitempty"`

	version int64
}

func (l *Login) response() models.FlowResponse {
	return models.FlowResponse{
		FlowID:  l.ID,
		State:   l.State,
		Methods: l.Offered,
		Method:  l.Method,
	}
}

// Authenticator drives returning voters to an authenticated session
type Authenticator struct {
	flows    *Store
	voters   *voters.Store
	sessions *auth.Sessions
	code     verify.Verifier
	assert   verify.Verifier
}

func NewAuthenticator(db *sql.DB, codes *otp.Service, creds *credential.Service, sessions *auth.Sessions) *Authenticator {
	store := voters.NewStore(db)
	return &Authenticator{
		flows:    NewStore(db),
		voters:   store,
		sessions: sessions,
		code:     verify.NewCodeVerifier(codes, models.PurposeLogin),
		assert:   verify.NewAssertVerifier(creds, store),
	}
}

// WithClock overrides the time source for flow expiry, for tests
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.flows.now = now
	return a
}

func (a *Authenticator) verifier(method string) verify.Verifier {
	if method == models.MethodLocalCredential {
		return a.assert
	}
	return a.code
}

// lookup returns the verified voter for an identifier as a verify.Subject
func (a *Authenticator) lookup(ctx context.Context, matric string, caps models.Capabilities) (models.VoterRecord, verify.Subject, error) {
	voter, found, err := a.voters.Get(ctx, matric)
	if err != nil {
		return models.VoterRecord{}, verify.Subject{}, err
	}
	if !found {
		return models.VoterRecord{}, verify.Subject{}, models.ErrNotRegistered
	}
	if !voter.Verified {
		return models.VoterRecord{}, verify.Subject{}, models.ErrNotVerified
	}

	return voter, verify.Subject{
		VoterID:      voter.ID,
		MatricNumber: voter.MatricNumber,
		Name:         voter.Name,
		Email:        voter.Email,
		Credential:   voter.Credential,
		Capabilities: caps,
	}, nil
}

// Start looks up the voter and offers verification methods, local
// credential first when both the voter and the client support it
func (a *Authenticator) Start(ctx context.Context, req models.StartLoginRequest) (models.FlowResponse, error) {
	if !roster.ValidIdentifier(req.MatricNumber) {
		return models.FlowResponse{}, models.ErrInvalidIdentifier
	}

	_, subj, err := a.lookup(ctx, roster.Normalize(req.MatricNumber), req.Capabilities)
	if err != nil {
		return models.FlowResponse{}, err
	}

	l := &Login{
		State:        StateMethodOffer,
		MatricNumber: subj.MatricNumber,
		Capabilities: req.Capabilities,
		Offered:      verify.Offer(subj, a.assert, a.code),
	}
	id, version, err := a.flows.create(ctx, KindLogin, l.State, l)
	if err != nil {
		return models.FlowResponse{}, err
	}
	l.ID, l.version = id, version
	return l.response(), nil
}

// Get loads a login flow
func (a *Authenticator) Get(ctx context.Context, id string) (*Login, error) {
	l := &Login{}
	state, version, err := a.flows.load(ctx, id, KindLogin, l)
	if err != nil {
		return nil, err
	}
	l.ID, l.State, l.version = id, state, version
	return l, nil
}

// Status returns the current state for a client resuming the flow
func (a *Authenticator) Status(ctx context.Context, id string) (models.FlowResponse, error) {
	l, err := a.Get(ctx, id)
	if err != nil {
		return models.FlowResponse{}, err
	}
	return l.response(), nil
}

func (a *Authenticator) load(ctx context.Context, id string, allowed ...string) (*Login, error) {
	l, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, l.State) {
		return nil, models.ErrInvalidState
	}
	return l, nil
}

func (a *Authenticator) save(ctx context.Context, l *Login, state string) error {
	version, err := a.flows.save(ctx, l.ID, state, l.version, l)
	if err != nil {
		return err
	}
	l.State, l.version = state, version
	return nil
}

// ChooseMethod begins the challenge for one of the offered methods. The
// voter may switch methods until authenticated.
func (a *Authenticator) ChooseMethod(ctx context.Context, id, method string) (models.FlowResponse, error) {
	l, err := a.load(ctx, id, StateMethodOffer, StateCodeChallenge, StateLocalCredentialChallenge)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if !slices.Contains(l.Offered, method) {
		return models.FlowResponse{}, models.ErrInvalidMethod
	}
	return a.begin(ctx, l, method)
}

func (a *Authenticator) begin(ctx context.Context, l *Login, method string) (models.FlowResponse, error) {
	_, subj, err := a.lookup(ctx, l.MatricNumber, l.Capabilities)
	if err != nil {
		return models.FlowResponse{}, err
	}

	started, beginErr := a.verifier(method).Begin(ctx, subj)
	if started.Challenge == nil && started.CodeSent == nil {
		return models.FlowResponse{}, beginErr
	}

	state := StateCodeChallenge
	if method == models.MethodLocalCredential {
		state = StateLocalCredentialChallenge
	}
	l.Method = method
	if err := a.save(ctx, l, state); err != nil {
		return models.FlowResponse{}, err
	}

	resp := l.response()
	resp.Challenge = started.Challenge
	resp.CodeSent = started.CodeSent
	return resp, beginErr
}

// ResendCode issues another login code
func (a *Authenticator) ResendCode(ctx context.Context, id string) (models.FlowResponse, error) {
	l, err := a.load(ctx, id, StateCodeChallenge)
	if err != nil {
		return models.FlowResponse{}, err
	}
	return a.begin(ctx, l, models.MethodCode)
}

// VerifyCode checks a login code and issues a session
func (a *Authenticator) VerifyCode(ctx context.Context, id, code string) (models.FlowResponse, error) {
	return a.finish(ctx, id, StateCodeChallenge, verify.Proof{Code: strings.TrimSpace(code)})
}

// FinishCredential checks a credential assertion and issues a session
func (a *Authenticator) FinishCredential(ctx context.Context, id string, as models.Assertion) (models.FlowResponse, error) {
	return a.finish(ctx, id, StateLocalCredentialChallenge, verify.Proof{Assertion: &as})
}

func (a *Authenticator) finish(ctx context.Context, id, state string, proof verify.Proof) (models.FlowResponse, error) {
	l, err := a.load(ctx, id, state)
	if err != nil {
		return models.FlowResponse{}, err
	}

	voter, subj, err := a.lookup(ctx, l.MatricNumber, l.Capabilities)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if _, err := a.verifier(l.Method).Finish(ctx, subj, proof); err != nil {
		return models.FlowResponse{}, err
	}

	session, err := a.sessions.Issue(voter)
	if err != nil {
		return models.FlowResponse{}, err
	}
	l.SessionID = session.ID
	if err := a.save(ctx, l, StateAuthenticated); err != nil {
		return models.FlowResponse{}, err
	}

	slog.Info("voter authenticated", "matric_number", voter.MatricNumber, "method", l.Method)
	resp := l.response()
	resp.Session = &session
	return resp, nil
}
