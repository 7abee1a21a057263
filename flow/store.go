// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package flow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotbox/models"
)

// FlowTTL is how long an idle flow survives; every save extends it
const FlowTTL = 30 * time.Minute

// Flow kinds
const (
	KindRegistration = "registration"
	KindLogin        = "login"
)

// Store persists flow state as a JSON payload with an optimistic version
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) create(ctx context.Context, kind, state string, payload any) (string, int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode flow: %w", err)
	}

	id := uuid.NewString()
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO auth_flow (id, kind, state, payload, version, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, kind, state, string(data), 1, now.Add(FlowTTL), now)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create flow: %w", err)
	}

	return id, 1, nil
}

// load decodes the flow into payload and returns its state and version.
// Missing, expired, and wrong-kind flows are all ErrFlowNotFound.
func (s *Store) load(ctx context.Context, id, kind string, payload any) (string, int64, error) {
	var (
		state     string
		data      string
		version   int64
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT state, payload, version, expires_at FROM auth_flow
		WHERE id = $1 AND kind = $2
	`, id, kind).Scan(&state, &data, &version, &expiresAt)

	if err == sql.ErrNoRows {
		return "", 0, models.ErrFlowNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to load flow: %w", err)
	}
	if !s.now().Before(expiresAt) {
		return "", 0, models.ErrFlowNotFound
	}

	if err := json.Unmarshal([]byte(data), payload); err != nil {
		return "", 0, fmt.Errorf("failed to decode flow: %w", err)
	}
	return state, version, nil
}

// save writes the flow only if nobody else has since the given version
func (s *Store) save(ctx context.Context, id, state string, version int64, payload any) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode flow: %w", err)
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE auth_flow
		SET state = $1, payload = $2, version = version + 1, expires_at = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`, state, string(data), now.Add(FlowTTL), now, id, version)
	if err != nil {
		return 0, fmt.Errorf("failed to save flow: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to save flow: %w", err)
	}
	if n != 1 {
		return 0, models.ErrFlowConflict
	}
	return version + 1, nil
}
