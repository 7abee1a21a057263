// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/credential"
	"github.com/danielhkuo/ballotbox/flow"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/otp"
	"github.com/danielhkuo/ballotbox/tally"
	"github.com/danielhkuo/ballotbox/testutil"
)

const (
	demoMatric = "21/08NUS014"
	demoEmail  = "demo@example.com"
)

type fixture struct {
	db           *sql.DB
	rec          *testutil.Recorder
	sessions     *auth.Sessions
	agg          *tally.Aggregator
	registration *RegistrationHandler
	login        *LoginHandler
	ballots      *BallotHandler
	results      *ResultsHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	f := &fixture{db: db, rec: &testutil.Recorder{}}
	codes := otp.NewService(db, f.rec, cfg.CodeSalt)
	creds := credential.NewService(db)
	f.sessions = auth.NewSessions(cfg.SessionSecret)
	f.agg = tally.New(db, cfg.TallyInterval)

	f.registration = NewRegistrationHandler(flow.NewRegistrar(db, codes, creds))
	f.login = NewLoginHandler(flow.NewAuthenticator(db, codes, creds, f.sessions))
	f.ballots = NewBallotHandler(ballot.NewManager(db, f.sessions, cfg, f.agg))
	f.results = NewResultsHandler(f.agg)
	return f
}

// serve runs a handler with the {flow} path value set
func serve(h http.HandlerFunc, method, path, flowID string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	req := testutil.MakeRequest(method, path, body, headers)
	if flowID != "" {
		req.SetPathValue("flow", flowID)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func (f *fixture) lastCode(t *testing.T, address string) string {
	t.Helper()
	msg, ok := f.rec.Last(address)
	if !ok {
		t.Fatalf("no code sent to %s", address)
	}
	return msg.Code
}

// register walks a registration to completion using a code
func (f *fixture) register(t *testing.T, matric, email string) models.VoterRecord {
	t.Helper()

	w := serve(f.registration.Start, "POST", "/register", "", nil, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp models.FlowResponse
	testutil.AssertJSON(t, w, &resp)
	id := resp.FlowID

	steps := []struct {
		h    http.HandlerFunc
		path string
		body interface{}
	}{
		{f.registration.Consent, "/consent", models.ConsentRequest{DataCollection: true, DataProcessing: true, Terms: true}},
		{f.registration.Identifier, "/identifier", models.IdentifierRequest{MatricNumber: matric}},
		{f.registration.Contact, "/contact", models.ContactRequest{Email: email}},
		{f.registration.Method, "/method", models.MethodRequest{Method: models.MethodCode}},
	}
	for _, s := range steps {
		w := serve(s.h, "POST", "/register/"+id+s.path, id, s.body, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d, body %s", s.path, w.Code, w.Body.String())
		}
	}

	w = serve(f.registration.VerifyCode, "POST", "/register/"+id+"/verify-code", id,
		models.VerifyCodeRequest{Code: f.lastCode(t, email)}, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	testutil.AssertJSON(t, w, &resp)
	if resp.Voter == nil {
		t.Fatal("expected voter after verification")
	}
	return *resp.Voter
}

// loginByCode returns a session token for a registered voter
func (f *fixture) loginByCode(t *testing.T, matric, email string) string {
	t.Helper()

	w := serve(f.login.Start, "POST", "/login", "", models.StartLoginRequest{MatricNumber: matric}, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp models.FlowResponse
	testutil.AssertJSON(t, w, &resp)
	id := resp.FlowID

	w = serve(f.login.Method, "POST", "/login/"+id+"/method", id, models.MethodRequest{Method: models.MethodCode}, nil)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = serve(f.login.VerifyCode, "POST", "/login/"+id+"/verify-code", id,
		models.VerifyCodeRequest{Code: f.lastCode(t, email)}, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &resp)
	if resp.Session == nil || resp.Session.Token == "" {
		t.Fatal("expected session after login")
	}
	return resp.Session.Token
}

// issue mints a session for a voter inserted directly
func (f *fixture) issue(t *testing.T, voter models.VoterRecord) string {
	t.Helper()
	s, err := f.sessions.Issue(voter)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return s.Token
}
