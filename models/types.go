package models

import "time"

// Code purposes
const (
	PurposeVerification  = "verification"
	PurposeLogin         = "login"
	PurposePasswordReset = "password_reset"
)

// Verification methods
const (
	MethodCode            = "code"
	MethodLocalCredential = "local_credential"
)

// Credential algorithms
const (
	AlgES256 = "ES256"
	AlgEdDSA = "EdDSA"
)

// Request types

type ConsentRequest struct {
	DataCollection bool `json:"data_collection"`
	DataProcessing bool `json:"data_processing"`
	Terms          bool `json:"terms"`
}

type IdentifierRequest struct {
	MatricNumber string `json:"matric_number"`
}

type ContactRequest struct {
	Email string `json:"email"`
}

// Capabilities is what the client reports about its platform authenticator
type Capabilities struct {
	PlatformAuthenticator bool `json:"platform_authenticator"`
	Embedded              bool `json:"embedded"`
}

type MethodRequest struct {
	Method       string       `json:"method"`
	Capabilities Capabilities `json:"capabilities"`
}

type VerifyCodeRequest struct {
	Code string `json:"code"`
}

// Attestation is the public half of a freshly generated credential,
// together with a signature over the registration challenge
type Attestation struct {
	ChallengeID  string `json:"challenge_id"`
	CredentialID string `json:"credential_id"`
	PublicKey    string `json:"public_key"` // base64url PKIX (ES256) or raw (EdDSA)
	Algorithm    string `json:"algorithm"`
	Signature    string `json:"signature"` // base64url
}

// Assertion proves possession of a registered credential
type Assertion struct {
	ChallengeID  string `json:"challenge_id"`
	CredentialID string `json:"credential_id"`
	SignCount    uint32 `json:"sign_count"`
	Signature    string `json:"signature"` // base64url over challenge || sign_count (big endian)
}

type CredentialRequest struct {
	Attestation *Attestation `json:"attestation,omitempty"`
	Assertion   *Assertion   `json:"assertion,omitempty"`
}

type StartLoginRequest struct {
	MatricNumber string       `json:"matric_number"`
	Capabilities Capabilities `json:"capabilities"`
}

// candidate_id null means a deliberate abstention
type SelectionRequest struct {
	PositionID  string  `json:"position_id"`
	CandidateID *string `json:"candidate_id"`
}

// Response types

type FlowResponse struct {
	FlowID    string             `json:"flow_id"`
	State     string             `json:"state"`
	Methods   []string           `json:"methods,omitempty"`
	Method    string             `json:"method,omitempty"`
	FellBack  bool               `json:"fell_back,omitempty"`
	Challenge *CredentialOptions `json:"challenge,omitempty"`
	CodeSent  *CodeNotice        `json:"code_sent,omitempty"`
	Voter     *VoterRecord       `json:"voter,omitempty"`
	Session   *Session           `json:"session,omitempty"`
}

type CodeNotice struct {
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CredentialOptions is handed to the platform authenticator
type CredentialOptions struct {
	ChallengeID  string    `json:"challenge_id"`
	Challenge    string    `json:"challenge"` // base64url
	Subject      string    `json:"subject"`
	DisplayName  string    `json:"display_name,omitempty"`
	CredentialID string    `json:"credential_id,omitempty"`
	Algorithms   []string  `json:"algorithms"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type ReviewResponse struct {
	Entries   []ReviewEntry `json:"entries"`
	Addressed int           `json:"addressed"`
	Total     int           `json:"total"`
}

type ReviewEntry struct {
	PositionID    string `json:"position_id"`
	PositionTitle string `json:"position_title"`
	Status        string `json:"status"` // selected, abstained, pending
	CandidateID   string `json:"candidate_id,omitempty"`
	CandidateName string `json:"candidate_name,omitempty"`
}

// Review entry statuses
const (
	ReviewSelected  = "selected"
	ReviewAbstained = "abstained"
	ReviewPending   = "pending"
)

type SubmitBallotResponse struct {
	Receipt   string    `json:"receipt"`
	Positions int       `json:"positions"`
	CastAt    time.Time `json:"cast_at"`
	Message   string    `json:"message"`
}

// Domain types

// StudentRecord is a roster entry seeded by an administrator
type StudentRecord struct {
	MatricNumber string `json:"matric_number"`
	Name         string `json:"name"`
	Department   string `json:"department"`
	Level        string `json:"level"`
}

type VoterRecord struct {
	ID           string           `json:"id"`
	MatricNumber string           `json:"matric_number"`
	Name         string           `json:"name"`
	Department   string           `json:"department"`
	Level        string           `json:"level"`
	Email        string           `json:"email"`
	Verified     bool             `json:"verified"`
	HasVoted     bool             `json:"has_voted"`
	Credential   *LocalCredential `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
}

// HasCredential reports whether a local credential is bound to the voter
func (v VoterRecord) HasCredential() bool {
	return v.Credential != nil && v.Credential.CredentialID != ""
}

type LocalCredential struct {
	CredentialID string    `json:"credential_id"`
	PublicKey    string    `json:"public_key"`
	Algorithm    string    `json:"algorithm"`
	SignCount    uint32    `json:"sign_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type OneTimeCode struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Purpose   string    `json:"purpose"`
	CodeHash  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

type Position struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Active       bool        `json:"active"`
	DisplayOrder int         `json:"display_order"`
	Candidates   []Candidate `json:"candidates"`
}

type Candidate struct {
	ID         string `json:"id"`
	PositionID string `json:"position_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Manifesto  string `json:"manifesto"`
	PhotoURL   string `json:"photo_url"`
}

type Ballot struct {
	ID          string    `json:"id"`
	PositionID  string    `json:"position_id"`
	CandidateID *string   `json:"candidate_id"`
	Receipt     string    `json:"-"`
	CastAt      time.Time `json:"cast_at"`
}

// Session is handed to the UI after a successful login
type Session struct {
	Token        string    `json:"token"`
	ID           string    `json:"-"`
	MatricNumber string    `json:"matric_number"`
	Name         string    `json:"name"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Tally types

type CandidateTally struct {
	CandidateID string  `json:"candidate_id"`
	Name        string  `json:"name"`
	Votes       int     `json:"votes"`
	Percentage  float64 `json:"percentage"`
	Rank        int     `json:"rank"` // 1-indexed
	JustChanged bool    `json:"just_changed"`
}

type PositionTally struct {
	PositionID  string           `json:"position_id"`
	Title       string           `json:"title"`
	TotalVotes  int              `json:"total_votes"`
	Abstentions int              `json:"abstentions"`
	Candidates  []CandidateTally `json:"candidates"`
}

type Turnout struct {
	Registered int     `json:"registered"`
	Voted      int     `json:"voted"`
	Percentage float64 `json:"percentage"`
}

type TallySnapshot struct {
	Version    int64           `json:"version"`
	ComputedAt time.Time       `json:"computed_at"`
	Positions  []PositionTally `json:"positions"`
	Turnout    Turnout         `json:"turnout"`
}

// Position returns the tally for the given position ID
func (s TallySnapshot) Position(id string) (PositionTally, bool) {
	for _, p := range s.Positions {
		if p.PositionID == id {
			return p, true
		}
	}
	return PositionTally{}, false
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
