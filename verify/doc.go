// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package verify puts the two ways of proving identity behind one interface.

A Verifier is begun and finished for a Subject:

	CodeVerifier             emails a one-time code (always available)
	LocalCredentialVerifier  enrolls or asserts a device-bound key

Enroll mode is used by registration and returns the new credential from
Finish. Assert mode is used by login and advances the stored signature
counter. Available reports runtime capability, so callers can offer methods
in preference order with Offer and fall back to codes when a local
credential cannot be used.
*/
package verify
