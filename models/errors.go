// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "errors"

// Identity lookup failures
var (
	ErrNotEligible   = errors.New("identifier not found in roster")
	ErrNotRegistered = errors.New("voter not registered")
	ErrNotVerified   = errors.New("voter not verified")
)

// State conflicts
var (
	ErrAlreadyRegistered  = errors.New("identifier already registered")
	ErrContactAlreadyUsed = errors.New("contact address already in use")
	ErrAlreadyVoted       = errors.New("voter has already voted")
)

// Verification failures
var (
	ErrInvalidOrExpired   = errors.New("code is invalid or expired")
	ErrUnsupported        = errors.New("local credential unsupported")
	ErrCredentialRejected = errors.New("credential rejected")
	ErrDeliveryFailed     = errors.New("code delivery failed")
)

// Input and flow errors
var (
	ErrInvalidIdentifier = errors.New("invalid matriculation number format")
	ErrInvalidContact    = errors.New("invalid email address")
	ErrConsentRequired   = errors.New("all consents are required")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrFlowNotFound      = errors.New("flow not found or expired")
	ErrFlowConflict      = errors.New("flow was modified concurrently")
	ErrInvalidMethod     = errors.New("verification method not offered")
	ErrSessionInvalid    = errors.New("session invalid or expired")
	ErrInvalidSelection  = errors.New("invalid position or candidate")
	ErrEmptyBallot       = errors.New("ballot must select at least one candidate")
)
