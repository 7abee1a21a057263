// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/testutil"
)

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) Notify() { c.n.Add(1) }

type fixture struct {
	db        *sql.DB
	clock     *testutil.Clock
	sessions  *auth.Sessions
	notifier  *countingNotifier
	mgr       *Manager
	president string
	secretary string
	inactive  string
	c1, c2    string
	s1        string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{db: testutil.SetupTestDB(t), clock: testutil.NewClock(), notifier: &countingNotifier{}}
	f.president = testutil.SeedPosition(t, f.db, "President", 1)
	f.secretary = testutil.SeedPosition(t, f.db, "Secretary", 2)
	f.inactive = testutil.SeedInactivePosition(t, f.db, "Treasurer")
	f.c2 = testutil.SeedCandidate(t, f.db, f.president, "C2", 2)
	f.c1 = testutil.SeedCandidate(t, f.db, f.president, "C1", 1)
	f.s1 = testutil.SeedCandidate(t, f.db, f.secretary, "S1", 1)
	testutil.SeedCandidate(t, f.db, f.inactive, "T1", 1)

	f.sessions = auth.NewSessions("test-session-secret").WithClock(f.clock.Now)
	f.mgr = NewManager(f.db, f.sessions, testutil.GetTestConfig(), f.notifier).WithClock(f.clock.Now)
	return f
}

func (f *fixture) login(t *testing.T, matric, email string) string {
	t.Helper()
	voter := testutil.CreateTestVoter(t, f.db, matric, email)
	s, err := f.sessions.Issue(voter)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return s.Token
}

func strPtr(s string) *string { return &s }

func TestListPositions(t *testing.T) {
	f := setup(t)
	token := f.login(t, "21/08NUS014", "demo@example.com")

	positions, err := f.mgr.ListPositions(context.Background(), token)
	if err != nil {
		t.Fatalf("ListPositions() error = %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("got %d positions, want 2 active", len(positions))
	}
	if positions[0].Title != "President" || positions[1].Title != "Secretary" {
		t.Errorf("order = %s, %s", positions[0].Title, positions[1].Title)
	}

	cands := positions[0].Candidates
	if len(cands) != 2 || cands[0].Name != "C1" || cands[1].Name != "C2" {
		t.Errorf("President candidates = %+v, want C1, C2 in display order", cands)
	}
}

func TestSelectAndReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.login(t, "21/08NUS014", "demo@example.com")

	rev, err := f.mgr.Review(ctx, token)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if rev.Addressed != 0 || rev.Total != 2 {
		t.Errorf("addressed %d of %d, want 0 of 2", rev.Addressed, rev.Total)
	}

	f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c1})
	// Changing one's mind is free
	f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c2})
	rev, err = f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.secretary})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if rev.Addressed != 2 {
		t.Errorf("addressed = %d, want 2", rev.Addressed)
	}
	if e := rev.Entries[0]; e.Status != models.ReviewSelected || e.CandidateID != f.c2 || e.CandidateName != "C2" {
		t.Errorf("President entry = %+v", e)
	}
	if e := rev.Entries[1]; e.Status != models.ReviewAbstained || e.CandidateID != "" {
		t.Errorf("Secretary entry = %+v", e)
	}

	if n := testutil.CountRows(t, f.db, "ballot"); n != 0 {
		t.Errorf("ballot rows = %d before submit, want 0", n)
	}
}

func TestSelectRejectsInvalid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.login(t, "21/08NUS014", "demo@example.com")

	tests := []struct {
		name string
		req  models.SelectionRequest
	}{
		{"unknown position", models.SelectionRequest{PositionID: "nope", CandidateID: &f.c1}},
		{"inactive position", models.SelectionRequest{PositionID: f.inactive}},
		{"candidate of another position", models.SelectionRequest{PositionID: f.president, CandidateID: &f.s1}},
		{"unknown candidate", models.SelectionRequest{PositionID: f.president, CandidateID: strPtr("ghost")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.mgr.Select(ctx, token, tt.req); !errors.Is(err, models.ErrInvalidSelection) {
				t.Errorf("Select() error = %v, want ErrInvalidSelection", err)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.login(t, "21/08NUS014", "demo@example.com")

	f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c1})
	f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.secretary})

	resp, err := f.mgr.Submit(ctx, token)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.Positions != 2 || resp.Receipt == "" {
		t.Errorf("resp = %+v", resp)
	}
	if !testutil.HasVoted(t, f.db, "21/08NUS014") {
		t.Error("has_voted should be true after submit")
	}
	if f.notifier.n.Load() != 1 {
		t.Errorf("notifications = %d, want 1", f.notifier.n.Load())
	}

	rows, err := f.db.Query(`SELECT position_id, candidate_id, receipt FROM ballot`)
	if err != nil {
		t.Fatalf("query ballots: %v", err)
	}
	got := map[string]sql.NullString{}
	for rows.Next() {
		var pos, receipt string
		var cand sql.NullString
		if err := rows.Scan(&pos, &cand, &receipt); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if receipt != resp.Receipt {
			t.Errorf("receipt = %s, want %s", receipt, resp.Receipt)
		}
		got[pos] = cand
	}
	rows.Close()

	if len(got) != 2 {
		t.Fatalf("ballot rows = %d, want 2", len(got))
	}
	if c := got[f.president]; !c.Valid || c.String != f.c1 {
		t.Errorf("President ballot = %+v, want %s", c, f.c1)
	}
	if c := got[f.secretary]; c.Valid {
		t.Errorf("Secretary ballot = %+v, want null abstention", c)
	}

	// The session is finished for every operation
	if _, err := f.mgr.Submit(ctx, token); !errors.Is(err, models.ErrAlreadyVoted) {
		t.Errorf("resubmit error = %v, want ErrAlreadyVoted", err)
	}
	if _, err := f.mgr.ListPositions(ctx, token); !errors.Is(err, models.ErrAlreadyVoted) {
		t.Errorf("ListPositions() after vote error = %v, want ErrAlreadyVoted", err)
	}
	if _, err := f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c2}); !errors.Is(err, models.ErrAlreadyVoted) {
		t.Errorf("Select() after vote error = %v, want ErrAlreadyVoted", err)
	}
	if n := testutil.CountRows(t, f.db, "ballot"); n != 2 {
		t.Errorf("ballot rows = %d after resubmit, want 2", n)
	}
}

func TestSubmitOmitsUnaddressedPositions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.login(t, "21/08NUS014", "demo@example.com")

	f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.secretary, CandidateID: &f.s1})
	resp, err := f.mgr.Submit(ctx, token)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.Positions != 1 {
		t.Errorf("positions = %d, want 1", resp.Positions)
	}
	if n := testutil.CountRows(t, f.db, "ballot"); n != 1 {
		t.Errorf("ballot rows = %d, want 1", n)
	}
}

func TestSubmitEmptyBallot(t *testing.T) {
	tests := []struct {
		name   string
		pick func(f *fixture, token string)
	}{
		{"nothing selected", func(f *fixture, token string) {}},
		{"all abstained", func(f *fixture, token string) {
			f.mgr.Select(context.Background(), token, models.SelectionRequest{PositionID: f.president})
			f.mgr.Select(context.Background(), token, models.SelectionRequest{PositionID: f.secretary})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			token := f.login(t, "21/08NUS014", "demo@example.com")
			tt.pick(f, token)

			if _, err := f.mgr.Submit(context.Background(), token); !errors.Is(err, models.ErrEmptyBallot) {
				t.Fatalf("Submit() error = %v, want ErrEmptyBallot", err)
			}
			if testutil.HasVoted(t, f.db, "21/08NUS014") {
				t.Error("empty ballot must not flip has_voted")
			}
			if n := testutil.CountRows(t, f.db, "ballot"); n != 0 {
				t.Errorf("ballot rows = %d, want 0", n)
			}
			if f.notifier.n.Load() != 0 {
				t.Error("empty ballot must not notify")
			}
		})
	}
}

func TestSubmitRejectsWithdrawnSelection(t *testing.T) {
	tests := []struct {
		name           string
		withdraw       func(t *testing.T, f *fixture)
		addressedAfter int
		reselect       bool
		positionsCast  int
	}{
		{"candidate deleted", func(t *testing.T, f *fixture) {
			if _, err := f.db.Exec(`DELETE FROM candidate WHERE id = $1`, f.c1); err != nil {
				t.Fatalf("delete candidate: %v", err)
			}
		}, 1, true, 2},
		{"position deactivated", func(t *testing.T, f *fixture) {
			if _, err := f.db.Exec(`UPDATE election_position SET active = $1 WHERE id = $2`, false, f.secretary); err != nil {
				t.Fatalf("deactivate position: %v", err)
			}
		}, 1, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			token := f.login(t, "21/08NUS014", "demo@example.com")

			f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c1})
			f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.secretary, CandidateID: &f.s1})
			tt.withdraw(t, f)

			if _, err := f.mgr.Submit(ctx, token); !errors.Is(err, models.ErrInvalidSelection) {
				t.Fatalf("Submit() error = %v, want ErrInvalidSelection", err)
			}
			if testutil.HasVoted(t, f.db, "21/08NUS014") {
				t.Error("rejected ballot must not flip has_voted")
			}
			if n := testutil.CountRows(t, f.db, "ballot"); n != 0 {
				t.Errorf("ballot rows = %d, want 0", n)
			}

			// The withdrawn entry is back to pending; the rest of the draft survives
			rev, err := f.mgr.Review(ctx, token)
			if err != nil {
				t.Fatalf("Review() error = %v", err)
			}
			if rev.Addressed != tt.addressedAfter {
				t.Errorf("addressed after rejection = %d, want %d", rev.Addressed, tt.addressedAfter)
			}
			if tt.reselect {
				f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c2})
			}

			resp, err := f.mgr.Submit(ctx, token)
			if err != nil {
				t.Fatalf("Submit() after review error = %v", err)
			}
			if resp.Positions != tt.positionsCast {
				t.Errorf("positions = %d, want %d", resp.Positions, tt.positionsCast)
			}
		})
	}
}

func TestSessionExpiryEnforcedOnEveryCall(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.login(t, "21/08NUS014", "demo@example.com")

	f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c1})
	f.clock.Advance(auth.SessionTTL + time.Second)

	if _, err := f.mgr.ListPositions(ctx, token); !errors.Is(err, models.ErrSessionInvalid) {
		t.Errorf("ListPositions() error = %v, want ErrSessionInvalid", err)
	}
	if _, err := f.mgr.Review(ctx, token); !errors.Is(err, models.ErrSessionInvalid) {
		t.Errorf("Review() error = %v, want ErrSessionInvalid", err)
	}
	if _, err := f.mgr.Submit(ctx, token); !errors.Is(err, models.ErrSessionInvalid) {
		t.Errorf("Submit() error = %v, want ErrSessionInvalid", err)
	}
	if testutil.HasVoted(t, f.db, "21/08NUS014") {
		t.Error("expired session must not cast a vote")
	}

	f.mgr.mu.Lock()
	f.mgr.sweep()
	left := len(f.mgr.drafts)
	f.mgr.mu.Unlock()
	if left != 0 {
		t.Errorf("drafts = %d after expiry, want 0", left)
	}
}

func TestForeignTokenRejected(t *testing.T) {
	f := setup(t)
	voter := testutil.CreateTestVoter(t, f.db, "21/08NUS014", "demo@example.com")
	other, _ := auth.NewSessions("another-secret").WithClock(f.clock.Now).Issue(voter)

	if _, err := f.mgr.Review(context.Background(), other.Token); !errors.Is(err, models.ErrSessionInvalid) {
		t.Errorf("Review() error = %v, want ErrSessionInvalid", err)
	}
}

func TestDraftsAreIsolated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.login(t, "21/08NUS014", "alice@example.com")
	bob := f.login(t, "21/08NUS015", "bob@example.com")

	f.mgr.Select(ctx, alice, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c1})
	rev, err := f.mgr.Review(ctx, bob)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if rev.Addressed != 0 {
		t.Errorf("bob sees %d addressed positions, want 0", rev.Addressed)
	}
}

func TestConcurrentSubmit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.login(t, "21/08NUS014", "demo@example.com")
	f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.president, CandidateID: &f.c1})
	f.mgr.Select(ctx, token, models.SelectionRequest{PositionID: f.secretary})

	const attempts = 8
	var wg sync.WaitGroup
	var ok, voted atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mgr.Submit(ctx, token)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, models.ErrAlreadyVoted):
				voted.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || voted.Load() != attempts-1 {
		t.Errorf("successes = %d, already voted = %d", ok.Load(), voted.Load())
	}
	if n := testutil.CountRows(t, f.db, "ballot"); n != 2 {
		t.Errorf("ballot rows = %d, want 2", n)
	}
}

func TestConcurrentVotersIndependent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const voters = 6
	tokens := make([]string, voters)
	for i := range tokens {
		matric := "21/08NUS0" + string(rune('1'+i)) + "0"
		tokens[i] = f.login(t, matric, matric[6:]+"@example.com")
		f.mgr.Select(ctx, tokens[i], models.SelectionRequest{PositionID: f.president, CandidateID: &f.c1})
	}

	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			if _, err := f.mgr.Submit(ctx, token); err != nil {
				t.Errorf("Submit() error = %v", err)
			}
		}(token)
	}
	wg.Wait()

	if n := testutil.CountRows(t, f.db, "ballot"); n != voters {
		t.Errorf("ballot rows = %d, want %d", n, voters)
	}
}
