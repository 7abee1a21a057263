// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/ballotbox/cliparse"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/notify"
	"github.com/danielhkuo/ballotbox/router"
	"github.com/danielhkuo/ballotbox/tally"
)

func main() {
	var err error

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to the database
	dbConn, err := db.Open(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Code delivery
	var sender notify.Sender = notify.LogSender{}
	if cfg.SMTPAddr != "" {
		sender = notify.SMTPSender{Addr: cfg.SMTPAddr, From: cfg.MailFrom}
		slog.Info("Delivering codes by SMTP", "addr", cfg.SMTPAddr)
	} else {
		slog.Warn("SMTP not configured, codes are written to the log")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live tally
	agg := tally.New(dbConn, cfg.TallyInterval)
	go func() {
		if err := agg.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("tally stopped", "error", err)
		}
	}()
	if cfg.DatabaseType == cliparse.DatabasePostgres {
		go func() {
			if err := tally.ListenPostgres(ctx, cfg.DatabaseURL, agg); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("ballot listener stopped", "error", err)
			}
		}()
	}

	// Create router
	mux := router.NewRouter(dbConn, cfg, sender, agg)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		cancel()
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
