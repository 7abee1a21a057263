// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package otp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/notify"
)

const (
	CodeDigits = 6
	CodeTTL    = 5 * time.Minute

	// MaxAttempts is how many wrong guesses burn every live code for an
	// address and purpose
	MaxAttempts = 5
)

type Service struct {
	db     *sql.DB
	sender notify.Sender
	salt   string
	now    func() time.Time
}

func NewService(db *sql.DB, sender notify.Sender, salt string) *Service {
	return &Service{db: db, sender: sender, salt: salt, now: time.Now}
}

// WithClock overrides the time source, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func validPurpose(purpose string) bool {
	switch purpose {
	case models.PurposeVerification, models.PurposeLogin, models.PurposePasswordReset:
		return true
	}
	return false
}

// Issue stores a fresh code for address/purpose and dispatches it.
// Earlier live codes stay valid. If delivery fails the row is kept and the
// returned error wraps ErrDeliveryFailed so the caller can offer a resend.
func (s *Service) Issue(ctx context.Context, address, purpose string) (models.OneTimeCode, error) {
	if !validPurpose(purpose) {
		return models.OneTimeCode{}, fmt.Errorf("unknown code purpose %q", purpose)
	}

	code, err := auth.GenerateNumericCode(CodeDigits)
	if err != nil {
		return models.OneTimeCode{}, err
	}

	now := s.now().UTC()
	rec := models.OneTimeCode{
		ID:        uuid.NewString(),
		Address:   address,
		Purpose:   purpose,
		CodeHash:  auth.HashCode(address, purpose, code, s.salt),
		CreatedAt: now,
		ExpiresAt: now.Add(CodeTTL),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO one_time_code (id, address, purpose, code_hash, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Address, rec.Purpose, rec.CodeHash, rec.CreatedAt, rec.ExpiresAt, false)
	if err != nil {
		return models.OneTimeCode{}, fmt.Errorf("failed to store code: %w", err)
	}

	err = s.sender.Send(ctx, notify.Message{
		Address:   address,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		slog.Warn("code delivery failed", "purpose", purpose, "error", err)
		return rec, errors.Join(models.ErrDeliveryFailed, err)
	}

	return rec, nil
}

// Validate consumes the live code matching address, purpose, and the exact
// submitted value. Wrong, used, and expired codes all yield ErrInvalidOrExpired.
// Marking the row used is a guarded UPDATE, so concurrent attempts with the
// same code see exactly one success. A miss counts against every unused code
// for the address and purpose; after MaxAttempts misses they are burned and
// the voter has to request a new code.
func (s *Service) Validate(ctx context.Context, address, purpose, submitted string) error {
	if len(submitted) != CodeDigits || !validPurpose(purpose) {
		return models.ErrInvalidOrExpired
	}

	hash := auth.HashCode(address, purpose, submitted, s.salt)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, expires_at FROM one_time_code
		WHERE address = $1 AND purpose = $2 AND code_hash = $3 AND used = $4
		  AND failed_attempts < $5
		ORDER BY created_at DESC
	`, address, purpose, hash, false, MaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to query codes: %w", err)
	}

	now := s.now()
	var candidates []string
	for rows.Next() {
		var id string
		var expiresAt time.Time
		if err := rows.Scan(&id, &expiresAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan code: %w", err)
		}
		if now.Before(expiresAt) {
			candidates = append(candidates, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read codes: %w", err)
	}
	rows.Close()

	for _, id := range candidates {
		res, err := s.db.ExecContext(ctx, `
			UPDATE one_time_code SET used = $1 WHERE id = $2 AND used = $3
		`, true, id, false)
		if err != nil {
			return fmt.Errorf("failed to consume code: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to consume code: %w", err)
		}
		if n == 1 {
			return nil
		}
	}

	if len(candidates) == 0 {
		if err := s.recordMiss(ctx, address, purpose); err != nil {
			return err
		}
	}
	return models.ErrInvalidOrExpired
}

// recordMiss bumps the failure count of the unused codes for address and
// purpose and burns those that reached MaxAttempts
func (s *Service) recordMiss(ctx context.Context, address, purpose string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE one_time_code SET failed_attempts = failed_attempts + 1
		WHERE address = $1 AND purpose = $2 AND used = $3
	`, address, purpose, false)
	if err != nil {
		return fmt.Errorf("failed to record code miss: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE one_time_code SET used = $1
		WHERE address = $2 AND purpose = $3 AND used = $4 AND failed_attempts >= $5
	`, true, address, purpose, false, MaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to burn codes: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("codes burned after repeated misses", "purpose", purpose, "codes", n)
	}
	return nil
}
