// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

// Supported database types
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	SessionSecret string
	CodeSalt      string
	SMTPAddr      string
	MailFrom      string
	TallyInterval time.Duration
}

// ParseFlags validates flags and falls back to environment variables
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("ballotbox", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.SessionSecret, "session-secret", "", "Session signing secret (prefer env)")
	fs.StringVar(&cfg.CodeSalt, "code-salt", "", "One-time code salt (prefer env)")

	// Code delivery
	fs.StringVar(&cfg.SMTPAddr, "smtp", "", "SMTP relay host:port (empty logs codes instead)")
	fs.StringVar(&cfg.MailFrom, "mail-from", "", "Sender address for codes")

	fs.DurationVar(&cfg.TallyInterval, "tally-interval", 0, "Tally polling fallback interval")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = DatabaseSQLite
		}
	}
	if cfg.DatabaseType != DatabaseSQLite && cfg.DatabaseType != DatabasePostgres {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	// Secrets - MUST be provided
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET required")
	}

	if cfg.CodeSalt == "" {
		cfg.CodeSalt = os.Getenv("CODE_SALT")
	}
	if cfg.CodeSalt == "" {
		return Config{}, errors.New("CODE_SALT required")
	}

	if cfg.SMTPAddr == "" {
		cfg.SMTPAddr = os.Getenv("SMTP_ADDR")
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = os.Getenv("MAIL_FROM")
		if cfg.MailFrom == "" {
			cfg.MailFrom = "elections@localhost"
		}
	}

	if cfg.TallyInterval == 0 {
		if s := os.Getenv("TALLY_INTERVAL"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return Config{}, errors.New("invalid TALLY_INTERVAL env variable")
			}
			cfg.TallyInterval = d
		} else {
			cfg.TallyInterval = 5 * time.Second
		}
	}
	if cfg.TallyInterval < time.Second {
		return Config{}, errors.New("tally interval must be at least 1s")
	}

	return cfg, nil
}
