// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package otp issues and validates single-use six-digit codes.

A code is bound to an address and a purpose (verification, login,
password_reset) and expires five minutes after issue:

	rec, err := codes.Issue(ctx, "demo@example.com", models.PurposeVerification)
	err = codes.Validate(ctx, "demo@example.com", models.PurposeVerification, "123456")

Only an HMAC of the code is stored. Several live codes may exist for the same
address and purpose; validation matches the submitted value, not the latest
row. The consuming UPDATE is guarded by used = false, so a code succeeds at
most once even under concurrent attempts. Wrong and expired codes return the
same ErrInvalidOrExpired. Every miss counts against the unused codes for the
address and purpose, and MaxAttempts misses burn them.
*/
package otp
