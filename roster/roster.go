// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package roster

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/danielhkuo/ballotbox/models"
)

// two digits, slash, two digits, three letters, three digits
var matricPattern = regexp.MustCompile(`^[0-9]{2}/[0-9]{2}[A-Z]{3}[0-9]{3}$`)

// Normalize trims and case-folds an identifier into its canonical form
func Normalize(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

// ValidIdentifier reports whether the canonical identifier has the expected shape
func ValidIdentifier(identifier string) bool {
	return matricPattern.MatchString(Normalize(identifier))
}

type Roster struct {
	db *sql.DB
}

func New(db *sql.DB) *Roster {
	return &Roster{db: db}
}

// Lookup resolves an identifier to a roster entry.
// Absence is reported through found, never as an error.
func (r *Roster) Lookup(ctx context.Context, identifier string) (student models.StudentRecord, found bool, err error) {
	canonical := Normalize(identifier)
	if canonical == "" {
		return models.StudentRecord{}, false, nil
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT matric_number, name, department, level
		FROM student
		WHERE UPPER(matric_number) = $1
	`, canonical).Scan(&student.MatricNumber, &student.Name, &student.Department, &student.Level)

	if err == sql.ErrNoRows {
		return models.StudentRecord{}, false, nil
	}
	if err != nil {
		return models.StudentRecord{}, false, fmt.Errorf("failed to query roster: %w", err)
	}

	student.MatricNumber = Normalize(student.MatricNumber)
	return student, true, nil
}
