// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package credential verifies device-bound public-key credentials.

The private key never leaves the voter's platform authenticator. The server
only issues single-use challenges and checks signatures:

	opts, err := creds.BeginRegistration(ctx, matric, name, caps)  // ErrUnsupported → use a code
	cred, err := creds.FinishRegistration(ctx, matric, attestation)

	opts, err = creds.BeginAuthentication(ctx, matric, cred)
	err = creds.FinishAuthentication(ctx, matric, cred, assertion)

# Algorithms

  - ES256: P-256 ECDSA, public key as PKIX DER, ASN.1 signature over SHA-256
  - EdDSA: Ed25519, raw 32-byte public key

Binary values travel as unpadded URL-safe base64.

# Signatures

Registration signs the raw challenge. Login signs the challenge followed by
the big-endian uint32 signature counter, which must exceed the stored
counter. Challenges expire after two minutes and are consumed on first use.
*/
package credential
