// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/cliparse"
	"github.com/danielhkuo/ballotbox/credential"
	"github.com/danielhkuo/ballotbox/flow"
	"github.com/danielhkuo/ballotbox/handlers"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/notify"
	"github.com/danielhkuo/ballotbox/otp"
	"github.com/danielhkuo/ballotbox/tally"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, sender notify.Sender, agg *tally.Aggregator) *http.ServeMux {
	mux := http.NewServeMux()

	// Services
	codes := otp.NewService(db, sender, cfg.CodeSalt)
	creds := credential.NewService(db)
	sessions := auth.NewSessions(cfg.SessionSecret)

	// Initialize handlers
	registrationHandler := handlers.NewRegistrationHandler(flow.NewRegistrar(db, codes, creds).WithNotifier(agg))
	loginHandler := handlers.NewLoginHandler(flow.NewAuthenticator(db, codes, creds, sessions))
	ballotHandler := handlers.NewBallotHandler(ballot.NewManager(db, sessions, cfg, agg))
	resultsHandler := handlers.NewResultsHandler(agg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Registration
	mux.HandleFunc("POST /register", middleware.WithLogging(registrationHandler.Start))
	mux.HandleFunc("GET /register/{flow}", middleware.WithLogging(registrationHandler.Status))
	mux.HandleFunc("POST /register/{flow}/consent", middleware.WithLogging(registrationHandler.Consent))
	mux.HandleFunc("POST /register/{flow}/identifier", middleware.WithLogging(registrationHandler.Identifier))
	mux.HandleFunc("POST /register/{flow}/contact", middleware.WithLogging(registrationHandler.Contact))
	mux.HandleFunc("POST /register/{flow}/method", middleware.WithLogging(registrationHandler.Method))
	mux.HandleFunc("POST /register/{flow}/resend-code", middleware.WithLogging(registrationHandler.ResendCode))
	mux.HandleFunc("POST /register/{flow}/verify-code", middleware.WithLogging(registrationHandler.VerifyCode))
	mux.HandleFunc("POST /register/{flow}/credential", middleware.WithLogging(registrationHandler.Credential))
	mux.HandleFunc("POST /register/{flow}/complete", middleware.WithLogging(registrationHandler.Complete))
	mux.HandleFunc("POST /register/{flow}/start-over", middleware.WithLogging(registrationHandler.StartOver))

	// Login
	mux.HandleFunc("POST /login", middleware.WithLogging(loginHandler.Start))
	mux.HandleFunc("GET /login/{flow}", middleware.WithLogging(loginHandler.Status))
	mux.HandleFunc("POST /login/{flow}/method", middleware.WithLogging(loginHandler.Method))
	mux.HandleFunc("POST /login/{flow}/resend-code", middleware.WithLogging(loginHandler.ResendCode))
	mux.HandleFunc("POST /login/{flow}/verify-code", middleware.WithLogging(loginHandler.VerifyCode))
	mux.HandleFunc("POST /login/{flow}/credential", middleware.WithLogging(loginHandler.Credential))

	// Ballot session (requires Authorization: Bearer)
	mux.HandleFunc("GET /session", middleware.WithLogging(ballotHandler.Session))
	mux.HandleFunc("GET /ballot/positions", middleware.WithLogging(ballotHandler.Positions))
	mux.HandleFunc("PUT /ballot/selections", middleware.WithLogging(ballotHandler.Select))
	mux.HandleFunc("GET /ballot/review", middleware.WithLogging(ballotHandler.Review))
	mux.HandleFunc("POST /ballot/submit", middleware.WithLogging(ballotHandler.Submit))

	// Results (public)
	mux.HandleFunc("GET /results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /results/stream", middleware.WithLogging(resultsHandler.Stream))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ballotbox API v1"))
	})

	return mux
}
