// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/cliparse"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/models"
)

// Notifier is told after ballots are committed
type Notifier interface {
	Notify()
}

// draft holds pending selections; a nil candidate is an abstention
type draft struct {
	selections map[string]*string
	expiresAt  time.Time
}

// Manager runs ballot sessions for authenticated voters. Selections live in
// memory until submit, keyed by session ID, and expire with the session.
type Manager struct {
	db       *sql.DB
	sessions *auth.Sessions
	notifier Notifier
	postgres bool
	now      func() time.Time

	mu     sync.Mutex
	drafts map[string]*draft
}

func NewManager(conn *sql.DB, sessions *auth.Sessions, cfg cliparse.Config, notifier Notifier) *Manager {
	return &Manager{
		db:       conn,
		sessions: sessions,
		notifier: notifier,
		postgres: cfg.DatabaseType == cliparse.DatabasePostgres,
		now:      time.Now,
		drafts:   map[string]*draft{},
	}
}

// WithClock overrides the time source used for draft expiry, for tests
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Session validates a token without checking the voting state
func (m *Manager) Session(token string) (models.Session, error) {
	return m.sessions.Parse(token)
}

// authorize validates the session on every call and rejects voters who
// have already voted
func (m *Manager) authorize(ctx context.Context, token string) (models.Session, error) {
	session, err := m.sessions.Parse(token)
	if err != nil {
		return models.Session{}, err
	}

	var voted bool
	err = m.db.QueryRowContext(ctx, `
		SELECT has_voted FROM voter WHERE matric_number = $1 AND verified = $2
	`, session.MatricNumber, true).Scan(&voted)
	if err == sql.ErrNoRows {
		return models.Session{}, models.ErrSessionInvalid
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to check voter: %w", err)
	}
	if voted {
		return models.Session{}, models.ErrAlreadyVoted
	}

	return session, nil
}

// selections returns a copy of the session's draft
func (m *Manager) selections(session models.Session) map[string]*string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	out := map[string]*string{}
	if d, ok := m.drafts[session.ID]; ok {
		for k, v := range d.selections {
			out[k] = v
		}
	}
	return out
}

// prune removes draft entries whose position or candidate was withdrawn,
// so the next Review shows them as pending
func (m *Manager) prune(session models.Session, positions []models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[session.ID]
	if !ok {
		return
	}
	for id, choice := range d.selections {
		p, ok := findPosition(positions, id)
		if !ok {
			delete(d.selections, id)
			continue
		}
		if choice != nil {
			if _, ok := findCandidate(p, *choice); !ok {
				delete(d.selections, id)
			}
		}
	}
}

// sweep drops drafts of expired sessions. Caller holds mu.
func (m *Manager) sweep() {
	now := m.now()
	for id, d := range m.drafts {
		if !now.Before(d.expiresAt) {
			delete(m.drafts, id)
		}
	}
}

// ListPositions returns the active positions and their candidates
func (m *Manager) ListPositions(ctx context.Context, token string) ([]models.Position, error) {
	if _, err := m.authorize(ctx, token); err != nil {
		return nil, err
	}
	return ActivePositions(ctx, m.db)
}

// Select records or changes the pending choice for one position.
// A nil candidate abstains. Nothing is written until Submit.
func (m *Manager) Select(ctx context.Context, token string, req models.SelectionRequest) (models.ReviewResponse, error) {
	session, err := m.authorize(ctx, token)
	if err != nil {
		return models.ReviewResponse{}, err
	}

	positions, err := ActivePositions(ctx, m.db)
	if err != nil {
		return models.ReviewResponse{}, err
	}
	p, ok := findPosition(positions, req.PositionID)
	if !ok {
		return models.ReviewResponse{}, models.ErrInvalidSelection
	}

	var choice *string
	if req.CandidateID != nil {
		c, ok := findCandidate(p, *req.CandidateID)
		if !ok {
			return models.ReviewResponse{}, models.ErrInvalidSelection
		}
		id := c.ID
		choice = &id
	}

	m.mu.Lock()
	d, ok := m.drafts[session.ID]
	if !ok {
		d = &draft{selections: map[string]*string{}, expiresAt: session.ExpiresAt}
		m.drafts[session.ID] = d
	}
	d.selections[p.ID] = choice
	m.mu.Unlock()

	return review(positions, m.selections(session)), nil
}

// Review returns every active position marked selected, abstained, or pending
func (m *Manager) Review(ctx context.Context, token string) (models.ReviewResponse, error) {
	session, err := m.authorize(ctx, token)
	if err != nil {
		return models.ReviewResponse{}, err
	}

	positions, err := ActivePositions(ctx, m.db)
	if err != nil {
		return models.ReviewResponse{}, err
	}
	return review(positions, m.selections(session)), nil
}

func review(positions []models.Position, selections map[string]*string) models.ReviewResponse {
	resp := models.ReviewResponse{Entries: []models.ReviewEntry{}, Total: len(positions)}

	for _, p := range positions {
		entry := models.ReviewEntry{PositionID: p.ID, PositionTitle: p.Title, Status: models.ReviewPending}
		choice, addressed := selections[p.ID]
		switch {
		case !addressed:
		case choice == nil:
			entry.Status = models.ReviewAbstained
			resp.Addressed++
		default:
			entry.Status = models.ReviewSelected
			entry.CandidateID = *choice
			if c, ok := findCandidate(p, *choice); ok {
				entry.CandidateName = c.Name
			}
			resp.Addressed++
		}
		resp.Entries = append(resp.Entries, entry)
	}

	return resp
}

// Submit casts the draft. Flipping has_voted and inserting one row per
// addressed position happen in one transaction; the guarded flip makes a
// concurrent resubmission fail with ErrAlreadyVoted.
func (m *Manager) Submit(ctx context.Context, token string) (models.SubmitBallotResponse, error) {
	session, err := m.authorize(ctx, token)
	if err != nil {
		return models.SubmitBallotResponse{}, err
	}

	positions, err := ActivePositions(ctx, m.db)
	if err != nil {
		return models.SubmitBallotResponse{}, err
	}
	selections := m.selections(session)

	type row struct {
		positionID  string
		candidateID *string
	}
	var rows []row
	affirmative := 0
	for _, p := range positions {
		choice, ok := selections[p.ID]
		if !ok {
			continue
		}
		if choice != nil {
			if _, valid := findCandidate(p, *choice); !valid {
				m.prune(session, positions)
				return models.SubmitBallotResponse{}, fmt.Errorf("candidate %s withdrawn: %w", *choice, models.ErrInvalidSelection)
			}
			affirmative++
		}
		rows = append(rows, row{positionID: p.ID, candidateID: choice})
	}
	// A draft entry for a position that is no longer active cannot be cast
	if len(rows) != len(selections) {
		m.prune(session, positions)
		return models.SubmitBallotResponse{}, fmt.Errorf("position withdrawn: %w", models.ErrInvalidSelection)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return models.SubmitBallotResponse{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE voter SET has_voted = $1
		WHERE matric_number = $2 AND has_voted = $3
	`, true, session.MatricNumber, false)
	if err != nil {
		return models.SubmitBallotResponse{}, fmt.Errorf("failed to mark voter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.SubmitBallotResponse{}, fmt.Errorf("failed to mark voter: %w", err)
	}
	if n != 1 {
		return models.SubmitBallotResponse{}, models.ErrAlreadyVoted
	}

	// Checked after the guard so a racing resubmission reports AlreadyVoted
	if affirmative == 0 {
		return models.SubmitBallotResponse{}, models.ErrEmptyBallot
	}

	receipt := uuid.NewString()
	castAt := m.now().UTC()
	for _, r := range rows {
		var candidateID sql.NullString
		if r.candidateID != nil {
			candidateID = sql.NullString{String: *r.candidateID, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ballot (id, position_id, candidate_id, receipt, cast_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), r.positionID, candidateID, receipt, castAt)
		if err != nil {
			return models.SubmitBallotResponse{}, fmt.Errorf("failed to insert ballot: %w", err)
		}

		if m.postgres {
			if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, db.BallotChannel, r.positionID); err != nil {
				return models.SubmitBallotResponse{}, fmt.Errorf("failed to notify: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return models.SubmitBallotResponse{}, fmt.Errorf("failed to commit ballot: %w", err)
	}

	m.mu.Lock()
	delete(m.drafts, session.ID)
	m.mu.Unlock()

	if m.notifier != nil {
		m.notifier.Notify()
	}

	slog.Info("ballot cast", "positions", len(rows), "affirmative", affirmative)

	return models.SubmitBallotResponse{
		Receipt:   receipt,
		Positions: len(rows),
		CastAt:    castAt,
		Message:   "Ballot cast successfully",
	}, nil
}
