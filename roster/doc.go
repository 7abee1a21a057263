// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package roster resolves matriculation numbers against the student roster.
//
// Identifiers are trimmed and upper-cased before comparison, and must look
// like 21/08NUS014. Lookup is read-only and reports absence as found=false.
package roster
