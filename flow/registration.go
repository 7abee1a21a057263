// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package flow

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/mail"
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

// Registration states
const (
	StateConsent              = "consent"
	StateIdentifierEntry      = "identifier_entry"
	StateContactEntry         = "contact_entry"
	StateMethodChoice         = "method_choice"
	StateLocalCredentialSetup = "local_credential_setup"
	StateCodeVerification     = "code_verification"
	StateComplete             = "complete"
)

type ConsentStep struct {
	DataCollection bool      `json:"data_collection"`
	DataProcessing bool      `json:"data_processing"`
	Terms          bool      `json:"terms"`
	At             time.Time `json:"at"`
}

type IdentityStep struct {
	Student models.StudentRecord `json:"student"`
}

type ContactStep struct {
	Email string `json:"email"`
}

type MethodStep struct {
	Method       string              `json:"method"`
	FellBack     bool                `json:"fell_back"`
	Capabilities models.Capabilities `json:"capabilities"`
}

// Registration is the persisted progress of one registration flow.
// Each step record is set when its state is passed.
type Registration struct {
	ID    string `json:"-"`
	State string `json:"-"`

	Consent    *ConsentStep            `json:"consent,omitempty"`
	Identity   *IdentityStep           `json:"identity,omitempty"`
	Contact    *ContactStep            `json:"contact,omitempty"`
	Method     *MethodStep             `json:"method,omitempty"`
	Credential *models.LocalCredential `json:"credential,omitempty"`

	// Verified is set once the code or credential checked out, before the
	// voter row is written, so a failed write can be retried
	Verified bool   `json:"verified"`
	VoterID  string `json:"voter_id,omitempty"`

	version int64
}

func (reg *Registration) subject() verify.Subject {
	subj := verify.Subject{VoterID: reg.VoterID}
	if reg.Identity != nil {
		subj.MatricNumber = reg.Identity.Student.MatricNumber
		subj.Name = reg.Identity.Student.Name
	}
	if reg.Contact != nil {
		subj.Email = reg.Contact.Email
	}
	if reg.Method != nil {
		subj.Capabilities = reg.Method.Capabilities
	}
	return subj
}

func (reg *Registration) response() models.FlowResponse {
	resp := models.FlowResponse{FlowID: reg.ID, State: reg.State}
	if reg.Method != nil {
		resp.Method = reg.Method.Method
		resp.FellBack = reg.Method.FellBack
	}
	return resp
}

// Notifier is told when a new voter lands in the registry
type Notifier interface {
	Notify()
}

// Registrar drives new voters from consent to a verified VoterRecord
type Registrar struct {
	flows    *Store
	roster   *roster.Roster
	voters   *voters.Store
	code     verify.Verifier
	enroll   verify.Verifier
	notifier Notifier
}

func NewRegistrar(db *sql.DB, codes *otp.Service, creds *credential.Service) *Registrar {
	return &Registrar{
		flows:  NewStore(db),
		roster: roster.New(db),
		voters: voters.NewStore(db),
		code:   verify.NewCodeVerifier(codes, models.PurposeVerification),
		enroll: verify.NewEnrollVerifier(creds),
	}
}

// WithClock overrides the time source for flow expiry, for tests
func (r *Registrar) WithClock(now func() time.Time) *Registrar {
	r.flows.now = now
	return r
}

// WithNotifier registers n to hear about completed registrations
func (r *Registrar) WithNotifier(n Notifier) *Registrar {
	r.notifier = n
	return r
}

// Start opens a flow in the Consent state
func (r *Registrar) Start(ctx context.Context) (models.FlowResponse, error) {
	reg := &Registration{State: StateConsent}
	id, version, err := r.flows.create(ctx, KindRegistration, reg.State, reg)
	if err != nil {
		return models.FlowResponse{}, err
	}
	reg.ID, reg.version = id, version
	return reg.response(), nil
}

// Get loads a registration flow
func (r *Registrar) Get(ctx context.Context, id string) (*Registration, error) {
	reg := &Registration{}
	state, version, err := r.flows.load(ctx, id, KindRegistration, reg)
	if err != nil {
		return nil, err
	}
	reg.ID, reg.State, reg.version = id, state, version
	return reg, nil
}

// Status returns the current state for a client resuming the flow
func (r *Registrar) Status(ctx context.Context, id string) (models.FlowResponse, error) {
	reg, err := r.Get(ctx, id)
	if err != nil {
		return models.FlowResponse{}, err
	}
	return reg.response(), nil
}

func (r *Registrar) save(ctx context.Context, reg *Registration, state string) error {
	version, err := r.flows.save(ctx, reg.ID, state, reg.version, reg)
	if err != nil {
		return err
	}
	reg.State, reg.version = state, version
	return nil
}

// load fetches the flow and checks it is in one of the allowed states
func (r *Registrar) load(ctx context.Context, id string, allowed ...string) (*Registration, error) {
	reg, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, s := range allowed {
		if reg.State == s {
			return reg, nil
		}
	}
	return nil, models.ErrInvalidState
}

// Consent records the three acknowledgements. All must be given.
func (r *Registrar) Consent(ctx context.Context, id string, req models.ConsentRequest) (models.FlowResponse, error) {
	reg, err := r.load(ctx, id, StateConsent)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if !req.DataCollection || !req.DataProcessing || !req.Terms {
		return models.FlowResponse{}, models.ErrConsentRequired
	}

	reg.Consent = &ConsentStep{
		DataCollection: true,
		DataProcessing: true,
		Terms:          true,
		At:             r.flows.now().UTC(),
	}
	if err := r.save(ctx, reg, StateIdentifierEntry); err != nil {
		return models.FlowResponse{}, err
	}
	return reg.response(), nil
}

// Identify checks the matriculation number's shape, the roster, and that no
// voter exists for it yet
func (r *Registrar) Identify(ctx context.Context, id, identifier string) (models.FlowResponse, error) {
	reg, err := r.load(ctx, id, StateIdentifierEntry)
	if err != nil {
		return models.FlowResponse{}, err
	}

	if !roster.ValidIdentifier(identifier) {
		return models.FlowResponse{}, models.ErrInvalidIdentifier
	}
	student, found, err := r.roster.Lookup(ctx, identifier)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if !found {
		return models.FlowResponse{}, models.ErrNotEligible
	}

	taken, err := r.voters.MatricTaken(ctx, student.MatricNumber)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if taken {
		return models.FlowResponse{}, models.ErrAlreadyRegistered
	}

	reg.Identity = &IdentityStep{Student: student}
	if err := r.save(ctx, reg, StateContactEntry); err != nil {
		return models.FlowResponse{}, err
	}
	return reg.response(), nil
}

// NormalizeEmail accepts a bare address and lower-cases it
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || addr.Name != "" {
		return "", models.ErrInvalidContact
	}
	at := strings.LastIndex(addr.Address, "@")
	if at < 1 || !strings.Contains(addr.Address[at:], ".") {
		return "", models.ErrInvalidContact
	}
	return strings.ToLower(addr.Address), nil
}

// Contact validates and reserves-by-check the email address
func (r *Registrar) Contact(ctx context.Context, id, email string) (models.FlowResponse, error) {
	reg, err := r.load(ctx, id, StateContactEntry)
	if err != nil {
		return models.FlowResponse{}, err
	}

	address, err := NormalizeEmail(email)
	if err != nil {
		return models.FlowResponse{}, err
	}
	taken, err := r.voters.EmailTaken(ctx, address)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if taken {
		return models.FlowResponse{}, models.ErrContactAlreadyUsed
	}

	reg.Contact = &ContactStep{Email: address}
	if err := r.save(ctx, reg, StateMethodChoice); err != nil {
		return models.FlowResponse{}, err
	}
	return reg.response(), nil
}

// ChooseMethod starts code or local credential verification. The method can
// be changed until verification succeeds. A local credential the client
// cannot produce falls back to a code.
func (r *Registrar) ChooseMethod(ctx context.Context, id string, req models.MethodRequest) (models.FlowResponse, error) {
	reg, err := r.load(ctx, id, StateMethodChoice, StateCodeVerification, StateLocalCredentialSetup)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if reg.Verified {
		return models.FlowResponse{}, models.ErrInvalidState
	}

	switch req.Method {
	case models.MethodCode, models.MethodLocalCredential:
	default:
		return models.FlowResponse{}, models.ErrInvalidMethod
	}

	reg.Method = &MethodStep{Method: req.Method, Capabilities: req.Capabilities}
	if req.Method == models.MethodLocalCredential {
		if r.enroll.Available(reg.subject()) {
			started, err := r.enroll.Begin(ctx, reg.subject())
			if err == nil {
				if err := r.save(ctx, reg, StateLocalCredentialSetup); err != nil {
					return models.FlowResponse{}, err
				}
				resp := reg.response()
				resp.Challenge = started.Challenge
				return resp, nil
			}
			if !errors.Is(err, models.ErrUnsupported) {
				return models.FlowResponse{}, err
			}
		}
		slog.Info("local credential unavailable, falling back to code", "flow_id", reg.ID)
	}

	return r.beginCode(ctx, reg, req.Method != models.MethodCode)
}

func (r *Registrar) beginCode(ctx context.Context, reg *Registration, fellBack bool) (models.FlowResponse, error) {
	caps := models.Capabilities{}
	if reg.Method != nil {
		caps = reg.Method.Capabilities
		fellBack = fellBack || reg.Method.FellBack
	}
	reg.Method = &MethodStep{Method: models.MethodCode, FellBack: fellBack, Capabilities: caps}

	started, sendErr := r.code.Begin(ctx, reg.subject())
	if started.CodeSent == nil {
		return models.FlowResponse{}, sendErr
	}

	// The code row exists even when delivery failed, so the flow moves on
	// and the client can ask for a resend
	if err := r.save(ctx, reg, StateCodeVerification); err != nil {
		return models.FlowResponse{}, err
	}
	resp := reg.response()
	resp.CodeSent = started.CodeSent
	return resp, sendErr
}

// ResendCode issues another code; earlier codes stay valid until they expire
func (r *Registrar) ResendCode(ctx context.Context, id string) (models.FlowResponse, error) {
	reg, err := r.load(ctx, id, StateCodeVerification)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if reg.Verified {
		return models.FlowResponse{}, models.ErrInvalidState
	}
	return r.beginCode(ctx, reg, false)
}

// VerifyCode checks the emailed code and completes the registration
func (r *Registrar) VerifyCode(ctx context.Context, id, code string) (models.FlowResponse, error) {
	reg, err := r.load(ctx, id, StateCodeVerification)
	if err != nil {
		return models.FlowResponse{}, err
	}

	if !reg.Verified {
		if _, err := r.code.Finish(ctx, reg.subject(), verify.Proof{Code: strings.TrimSpace(code)}); err != nil {
			return models.FlowResponse{}, err
		}
		if err := r.markVerified(ctx, reg, nil); err != nil {
			return models.FlowResponse{}, err
		}
	}
	return r.complete(ctx, reg)
}

// FinishCredential verifies the attestation and completes the registration.
// An attestation the server cannot accept for algorithm reasons falls back
// to a code rather than failing.
func (r *Registrar) FinishCredential(ctx context.Context, id string, att models.Attestation) (models.FlowResponse, error) {
	reg, err := r.load(ctx, id, StateLocalCredentialSetup)
	if err != nil {
		return models.FlowResponse{}, err
	}

	if !reg.Verified {
		cred, err := r.enroll.Finish(ctx, reg.subject(), verify.Proof{Attestation: &att})
		if errors.Is(err, models.ErrUnsupported) {
			return r.beginCode(ctx, reg, true)
		}
		if err != nil {
			return models.FlowResponse{}, err
		}
		if err := r.markVerified(ctx, reg, cred); err != nil {
			return models.FlowResponse{}, err
		}
	}
	return r.complete(ctx, reg)
}

func (r *Registrar) markVerified(ctx context.Context, reg *Registration, cred *models.LocalCredential) error {
	voterID, err := auth.GenerateID(16)
	if err != nil {
		return err
	}
	reg.Credential = cred
	reg.Verified = true
	reg.VoterID = voterID
	return r.save(ctx, reg, reg.State)
}

// Complete retries the final write after a verified flow failed to persist
// its voter. On a completed flow it returns the stored voter again.
func (r *Registrar) Complete(ctx context.Context, id string) (models.FlowResponse, error) {
	reg, err := r.Get(ctx, id)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if !reg.Verified {
		return models.FlowResponse{}, models.ErrInvalidState
	}
	return r.complete(ctx, reg)
}

func (r *Registrar) complete(ctx context.Context, reg *Registration) (models.FlowResponse, error) {
	student := reg.Identity.Student

	voter, err := r.voters.Create(ctx, models.VoterRecord{
		ID:           reg.VoterID,
		MatricNumber: student.MatricNumber,
		Name:         student.Name,
		Department:   student.Department,
		Level:        student.Level,
		Email:        reg.Contact.Email,
		Verified:     true,
		Credential:   reg.Credential,
		CreatedAt:    r.flows.now().UTC(),
	})
	if errors.Is(err, models.ErrAlreadyRegistered) || errors.Is(err, models.ErrContactAlreadyUsed) {
		// Our own earlier write may have landed before the flow was saved
		existing, found, getErr := r.voters.Get(ctx, student.MatricNumber)
		if getErr != nil {
			return models.FlowResponse{}, getErr
		}
		if !found || existing.ID != reg.VoterID {
			return models.FlowResponse{}, err
		}
		voter, err = existing, nil
	}
	if err != nil {
		return models.FlowResponse{}, err
	}

	if reg.State != StateComplete {
		if err := r.save(ctx, reg, StateComplete); err != nil {
			return models.FlowResponse{}, err
		}
		slog.Info("voter registered", "matric_number", voter.MatricNumber, "method", reg.Method.Method)
		if r.notifier != nil {
			r.notifier.Notify()
		}
	}

	resp := reg.response()
	resp.Voter = &voter
	return resp, nil
}

// StartOver discards all progress and returns the flow to Consent
func (r *Registrar) StartOver(ctx context.Context, id string) (models.FlowResponse, error) {
	reg, err := r.Get(ctx, id)
	if err != nil {
		return models.FlowResponse{}, err
	}
	if reg.State == StateComplete {
		return models.FlowResponse{}, models.ErrInvalidState
	}

	fresh := &Registration{ID: reg.ID, version: reg.version}
	if err := r.save(ctx, fresh, StateConsent); err != nil {
		return models.FlowResponse{}, err
	}
	return fresh.response(), nil
}
