// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - ConsentRequest: data_collection, data_processing, terms
  - IdentifierRequest: matric_number
  - ContactRequest: email
  - MethodRequest: method, capabilities
  - VerifyCodeRequest: code
  - CredentialRequest: attestation (registration) or assertion (login)
  - StartLoginRequest: matric_number, capabilities
  - SelectionRequest: position_id, candidate_id (null abstains)

# Response Types

  - FlowResponse: flow_id, state, offered methods, challenge, voter or session
  - ReviewResponse: per-position selected/abstained/pending entries
  - SubmitBallotResponse: receipt, positions, cast_at
  - ErrorResponse: error, message

# Domain Types

  - StudentRecord: read-only roster entry
  - VoterRecord: registered voter with verified and has_voted flags
  - LocalCredential: device-bound public key and signature counter
  - OneTimeCode: hashed single-use code with expiry
  - Position, Candidate: read-only ballot contents
  - Ballot: one (position, candidate-or-abstention) row, linked only to a receipt
  - Session: opaque token plus voter identity and issue/expiry times
  - TallySnapshot: ranked per-position counts, percentages, and turnout

# Errors

Domain failures are sentinel errors (ErrNotEligible, ErrAlreadyVoted, ...)
compared with errors.Is. Anything else is a transport or storage failure.
*/
package models
