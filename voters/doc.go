// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voters is the credential store: one verification record per voter.

Create is the single write of a registration. It inserts the voter and its
optional local credential in one transaction and relies on the UNIQUE
constraints, not on earlier reads, to reject duplicates:

	voter, err := store.Create(ctx, record)
	if errors.Is(err, models.ErrAlreadyRegistered) { ... }

has_voted is never written here; the ballot package flips it inside the
submission transaction.
*/
package voters
