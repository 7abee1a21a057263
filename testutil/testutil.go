// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/cliparse"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/models"
	_ "modernc.org/sqlite"
)

// SetupTestDB creates a fresh sqlite database with the full schema.
// Each test gets its own file, removed with t.TempDir.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite", db.SQLiteDSN(path))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          3318,
		DatabaseURL:   "file:test.db",
		DatabaseType:  cliparse.DatabaseSQLite,
		SessionSecret: "test-session-secret",
		CodeSalt:      "test-code-salt",
		MailFrom:      "elections@test.local",
		TallyInterval: time.Second,
	}
}

// SeedStudent adds a roster entry
func SeedStudent(t *testing.T, conn *sql.DB, matric, name string) models.StudentRecord {
	t.Helper()

	student := models.StudentRecord{
		MatricNumber: matric,
		Name:         name,
		Department:   "Computer Science",
		Level:        "300",
	}
	_, err := conn.Exec(`
		INSERT INTO student (matric_number, name, department, level)
		VALUES ($1, $2, $3, $4)
	`, student.MatricNumber, student.Name, student.Department, student.Level)
	if err != nil {
		t.Fatalf("Failed to seed student: %v", err)
	}

	return student
}

// SeedPosition creates an active position and returns its ID
func SeedPosition(t *testing.T, conn *sql.DB, title string, order int) string {
	t.Helper()

	positionID, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO election_position (id, title, active, display_order)
		VALUES ($1, $2, $3, $4)
	`, positionID, title, true, order)
	if err != nil {
		t.Fatalf("Failed to seed position: %v", err)
	}

	return positionID
}

// SeedInactivePosition creates a position hidden from the ballot
func SeedInactivePosition(t *testing.T, conn *sql.DB, title string) string {
	t.Helper()

	positionID, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO election_position (id, title, active, display_order)
		VALUES ($1, $2, $3, $4)
	`, positionID, title, false, 99)
	if err != nil {
		t.Fatalf("Failed to seed position: %v", err)
	}

	return positionID
}

// SeedCandidate adds a candidate to a position and returns its ID
func SeedCandidate(t *testing.T, conn *sql.DB, positionID, name string, order int) string {
	t.Helper()

	candidateID, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO candidate (id, position_id, name, department, manifesto, photo_url, display_order)
		VALUES ($1, $2, $3, 'Computer Science', 'Manifesto', '', $4)
	`, candidateID, positionID, name, order)
	if err != nil {
		t.Fatalf("Failed to seed candidate: %v", err)
	}

	return candidateID
}

// CreateTestVoter inserts a verified voter directly and returns the record
func CreateTestVoter(t *testing.T, conn *sql.DB, matric, email string) models.VoterRecord {
	t.Helper()

	voter := models.VoterRecord{
		MatricNumber: matric,
		Name:         "Voter " + matric,
		Department:   "Computer Science",
		Level:        "300",
		Email:        email,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
	}
	voter.ID, _ = auth.GenerateID(16)

	_, err := conn.Exec(`
		INSERT INTO voter (id, matric_number, name, department, level, email, verified, has_voted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, voter.ID, voter.MatricNumber, voter.Name, voter.Department, voter.Level,
		voter.Email, voter.Verified, false, voter.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return voter
}

// CountRows returns the row count of a table
func CountRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// HasVoted reads the has_voted flag for a voter
func HasVoted(t *testing.T, conn *sql.DB, matric string) bool {
	t.Helper()

	var voted bool
	err := conn.QueryRow(`SELECT has_voted FROM voter WHERE matric_number = $1`, matric).Scan(&voted)
	if err != nil {
		t.Fatalf("Failed to read has_voted: %v", err)
	}
	return voted
}

// Clock is a settable time source for expiry tests
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// Bearer builds an Authorization header map for a session token
func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
