// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally maintains live per-position results.

An Aggregator recounts ballots grouped by position and candidate, ranks
candidates by votes (ties keep display order), and computes percentages over
non-abstaining ballots, so a position's percentages sum to 100 whenever it
has votes and are all zero otherwise. Null-candidate ballots are reported
as Abstentions. Turnout comes from the voter table.

Refreshes are driven by hints:

	ballot.Manager.Submit  -> Aggregator.Notify (same process)
	pg_notify('ballot_cast') -> ListenPostgres -> Aggregator.Notify
	ticker every TallyInterval (fallback)

A snapshot is published only when a count or the turnout changed, and
candidates whose count rose since the previous snapshot are marked
JustChanged. Each subscriber has a one-slot channel that is overwritten with
the newest snapshot, so slow subscribers never block ballot ingestion and a
new subscription always starts with the full current state.
*/
package tally
