// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/ballotbox/models"
)

// ActivePositions loads active positions in display order, each with its
// candidates in display order
func ActivePositions(ctx context.Context, db *sql.DB) ([]models.Position, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, active, display_order FROM election_position
		WHERE active = $1
		ORDER BY display_order, title
	`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}

	var positions []models.Position
	index := map[string]int{}
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ID, &p.Title, &p.Active, &p.DisplayOrder); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.Candidates = []models.Candidate{}
		index[p.ID] = len(positions)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx, `
		SELECT c.id, c.position_id, c.name, c.department, c.manifesto, c.photo_url
		FROM candidate c
		JOIN election_position p ON p.id = c.position_id
		WHERE p.active = $1
		ORDER BY c.display_order, c.name
	`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.PositionID, &c.Name, &c.Department, &c.Manifesto, &c.PhotoURL); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if i, ok := index[c.PositionID]; ok {
			positions[i].Candidates = append(positions[i].Candidates, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	return positions, nil
}

func findPosition(positions []models.Position, id string) (models.Position, bool) {
	for _, p := range positions {
		if p.ID == id {
			return p, true
		}
	}
	return models.Position{}, false
}

func findCandidate(p models.Position, id string) (models.Candidate, bool) {
	for _, c := range p.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return models.Candidate{}, false
}
