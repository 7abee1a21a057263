// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ballot holds the authenticated voter's pending ballot and casts it.

# Session Checks

Every call takes the bearer token issued at login. The token is parsed
and the voter row is consulted each time, so a voter who has already
voted gets ErrAlreadyVoted from every operation, not just Submit.

# Pending Selections

Select records a candidate or, with a nil candidate, an explicit
abstention for one position:

	review, err := mgr.Select(ctx, token, models.SelectionRequest{
		PositionID:  presidentID,
		CandidateID: &candidateID,
	})

Selections live in memory keyed by session and are dropped when the
session expires. Nothing reaches the database before Submit.

# Submission

Submit runs one transaction:

	UPDATE voter SET has_voted = true WHERE ... AND has_voted = false
	INSERT INTO ballot ... (one row per addressed position)

Zero rows from the guarded update means the voter already voted. A ballot
with no candidate selected anywhere is rejected with ErrEmptyBallot and
leaves has_voted untouched. Rows share a random receipt and carry no
reference to the voter.

After commit the Notifier (the tally aggregator) is poked. On PostgreSQL
the transaction also raises pg_notify on db.BallotChannel so other
processes see the vote.
*/
package ballot
