// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/voters"
)

// Aggregator recomputes the tally when told ballots changed, or every
// interval as a fallback, and publishes changed snapshots to subscribers
type Aggregator struct {
	db       *sql.DB
	voters   *voters.Store
	interval time.Duration
	now      func() time.Time
	hints    chan struct{}

	refreshMu sync.Mutex

	mu      sync.Mutex
	current models.TallySnapshot
	have    bool
	subs    map[int]chan models.TallySnapshot
	nextSub int
}

func New(db *sql.DB, interval time.Duration) *Aggregator {
	return &Aggregator{
		db:       db,
		voters:   voters.NewStore(db),
		interval: interval,
		now:      time.Now,
		hints:    make(chan struct{}, 1),
		subs:     map[int]chan models.TallySnapshot{},
	}
}

// WithClock overrides the snapshot timestamp source, for tests
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Notify asks Run to refresh soon. It never blocks; hints coalesce.
func (a *Aggregator) Notify() {
	select {
	case a.hints <- struct{}{}:
	default:
	}
}

// Run refreshes once, then on every hint or tick until ctx is done
func (a *Aggregator) Run(ctx context.Context) error {
	if _, _, err := a.Refresh(ctx); err != nil {
		slog.Error("initial tally failed", "error", err)
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.hints:
		case <-ticker.C:
		}

		if _, _, err := a.Refresh(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("tally refresh failed", "error", err)
		}
	}
}

// Refresh recomputes the tally and publishes it if anything changed.
// It returns the current snapshot and whether a new one was published.
func (a *Aggregator) Refresh(ctx context.Context) (models.TallySnapshot, bool, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	positions, err := ballot.ActivePositions(ctx, a.db)
	if err != nil {
		return models.TallySnapshot{}, false, err
	}
	c, err := a.count(ctx)
	if err != nil {
		return models.TallySnapshot{}, false, err
	}
	turnout, err := a.voters.Turnout(ctx)
	if err != nil {
		return models.TallySnapshot{}, false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var prev *models.TallySnapshot
	if a.have {
		prev = &a.current
	}
	tallies := rank(positions, c, prev)

	if prev != nil && prev.Turnout == turnout && sameCounts(prev.Positions, tallies) {
		return a.current, false, nil
	}

	a.current = models.TallySnapshot{
		Version:    a.current.Version + 1,
		ComputedAt: a.now().UTC(),
		Positions:  tallies,
		Turnout:    turnout,
	}
	a.have = true

	for _, ch := range a.subs {
		offer(ch, a.current)
	}

	slog.Debug("tally published", "version", a.current.Version, "subscribers", len(a.subs))
	return a.current, true, nil
}

func (a *Aggregator) count(ctx context.Context) (counts, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT position_id, candidate_id, COUNT(*) FROM ballot
		GROUP BY position_id, candidate_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count ballots: %w", err)
	}
	defer rows.Close()

	c := counts{}
	for rows.Next() {
		var (
			positionID  string
			candidateID sql.NullString
			n           int
		)
		if err := rows.Scan(&positionID, &candidateID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan ballot count: %w", err)
		}
		c.add(positionID, candidateID.String, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ballot counts: %w", err)
	}

	return c, nil
}

// offer replaces whatever the subscriber has not read yet with snap.
// Caller holds mu, so this is the only sender.
func offer(ch chan models.TallySnapshot, snap models.TallySnapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Snapshot returns the latest published tally and whether one exists
func (a *Aggregator) Snapshot() (models.TallySnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, a.have
}

// Subscribe returns a channel that always holds the newest snapshot the
// subscriber has not read. A new subscriber gets the current snapshot
// straight away, so reconnecting clients start from a full state.
// The cancel func closes the channel.
func (a *Aggregator) Subscribe() (<-chan models.TallySnapshot, func()) {
	ch := make(chan models.TallySnapshot, 1)

	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	if a.have {
		ch <- a.current
	}
	a.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			close(ch)
			a.mu.Unlock()
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions
func (a *Aggregator) Subscribers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}
