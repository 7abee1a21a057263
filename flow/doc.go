// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package flow implements the registration and login state machines.

Registration:

	consent -> identifier_entry -> contact_entry -> method_choice
	        -> {local_credential_setup | code_verification} -> complete

Login:

	method_offer -> {local_credential_challenge | code_challenge} -> authenticated

Flows are stored in auth_flow as a JSON payload of per-step records
(ConsentStep, IdentityStep, ContactStep, MethodStep) with a version column.
Every save is conditional on the version that was loaded, so two concurrent
requests against one flow cannot both advance it; the loser gets
ErrFlowConflict. Idle flows expire after FlowTTL.

A step may be repeated after a validation failure, but earlier steps cannot
be revisited except through StartOver. The verification method can be
switched until verification succeeds. Choosing a local credential on a client
that cannot produce one falls back to an emailed code.

Once verification succeeds the flow records Verified and a voter ID before
writing the voter row. If that write fails the client calls Complete to try
again without a new code. The uniqueness of identifier and email is
enforced by the insert itself; losing a race surfaces as ErrAlreadyRegistered
or ErrContactAlreadyUsed.

A successful login issues a session token (see package auth).
*/
package flow
