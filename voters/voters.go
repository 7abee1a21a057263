// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voters

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get loads a voter and its local credential, if any
func (s *Store) Get(ctx context.Context, matric string) (models.VoterRecord, bool, error) {
	var (
		v         models.VoterRecord
		credID    sql.NullString
		publicKey sql.NullString
		algorithm sql.NullString
		signCount sql.NullInt64
		credAt    sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT v.id, v.matric_number, v.name, v.department, v.level, v.email,
		       v.verified, v.has_voted, v.created_at,
		       c.credential_id, c.public_key, c.algorithm, c.sign_count, c.created_at
		FROM voter v
		LEFT JOIN local_credential c ON c.voter_id = v.id
		WHERE v.matric_number = $1
	`, matric).Scan(
		&v.ID, &v.MatricNumber, &v.Name, &v.Department, &v.Level, &v.Email,
		&v.Verified, &v.HasVoted, &v.CreatedAt,
		&credID, &publicKey, &algorithm, &signCount, &credAt,
	)

	if err == sql.ErrNoRows {
		return models.VoterRecord{}, false, nil
	}
	if err != nil {
		return models.VoterRecord{}, false, fmt.Errorf("failed to query voter: %w", err)
	}

	if credID.Valid {
		v.Credential = &models.LocalCredential{
			CredentialID: credID.String,
			PublicKey:    publicKey.String,
			Algorithm:    algorithm.String,
			SignCount:    uint32(signCount.Int64),
			CreatedAt:    credAt.Time,
		}
	}

	return v, true, nil
}

// MatricTaken reports whether a voter already exists for the identifier
func (s *Store) MatricTaken(ctx context.Context, matric string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM voter WHERE matric_number = $1)
	`, matric).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check matric number: %w", err)
	}
	return exists, nil
}

// EmailTaken reports whether a voter already uses the contact address
func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM voter WHERE email = $1)
	`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// Create persists a verified voter, plus its credential when present, in one
// transaction. Duplicate identifiers or addresses are rejected by the UNIQUE
// constraints and reported as ErrAlreadyRegistered / ErrContactAlreadyUsed.
func (s *Store) Create(ctx context.Context, v models.VoterRecord) (models.VoterRecord, error) {
	if v.ID == "" {
		id, err := auth.GenerateID(16)
		if err != nil {
			return models.VoterRecord{}, err
		}
		v.ID = id
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.HasVoted = false

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.VoterRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO voter (id, matric_number, name, department, level, email, verified, has_voted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, v.ID, v.MatricNumber, v.Name, v.Department, v.Level, v.Email, v.Verified, false, v.CreatedAt)
	if err != nil {
		return models.VoterRecord{}, classifyInsert(err)
	}

	if v.HasCredential() {
		c := v.Credential
		if c.CreatedAt.IsZero() {
			c.CreatedAt = v.CreatedAt
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO local_credential (voter_id, credential_id, public_key, algorithm, sign_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, v.ID, c.CredentialID, c.PublicKey, c.Algorithm, int64(c.SignCount), c.CreatedAt)
		if err != nil {
			return models.VoterRecord{}, fmt.Errorf("failed to insert credential: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.VoterRecord{}, fmt.Errorf("failed to commit voter: %w", err)
	}

	return v, nil
}

func classifyInsert(err error) error {
	detail, ok := db.UniqueViolation(err)
	if !ok {
		return fmt.Errorf("failed to insert voter: %w", err)
	}
	if strings.Contains(detail, "email") {
		return models.ErrContactAlreadyUsed
	}
	return models.ErrAlreadyRegistered
}

// AdvanceSignCount stores a newer credential counter. It fails with
// ErrCredentialRejected if the stored counter is not lower, which means the
// assertion was replayed or the credential was cloned.
func (s *Store) AdvanceSignCount(ctx context.Context, voterID string, count uint32) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE local_credential SET sign_count = $1
		WHERE voter_id = $2 AND sign_count < $1
	`, int64(count), voterID)
	if err != nil {
		return fmt.Errorf("failed to update sign count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update sign count: %w", err)
	}
	if n != 1 {
		return models.ErrCredentialRejected
	}
	return nil
}

// Turnout counts verified voters and how many of them have voted
func (s *Store) Turnout(ctx context.Context) (models.Turnout, error) {
	var t models.Turnout
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN has_voted THEN 1 ELSE 0 END), 0)
		FROM voter
		WHERE verified = $1
	`, true).Scan(&t.Registered, &t.Voted)
	if err != nil {
		return models.Turnout{}, fmt.Errorf("failed to count turnout: %w", err)
	}

	if t.Registered > 0 {
		t.Percentage = roundPercent(float64(t.Voted) * 100 / float64(t.Registered))
	}
	return t, nil
}

func roundPercent(p float64) float64 {
	return float64(int64(p*100+0.5)) / 100
}
