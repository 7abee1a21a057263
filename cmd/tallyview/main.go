// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command tallyview prints the current election tally as terminal tables.
// With -watch it keeps the connection open and reprints on every change.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/danielhkuo/ballotbox/cliparse"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/tally"
)

func main() {
	_ = godotenv.Load()

	cfg := cliparse.Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseType: os.Getenv("DATABASE_TYPE"),
	}
	var watch bool
	var interval time.Duration
	flag.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	flag.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")
	flag.BoolVar(&watch, "watch", false, "Reprint whenever the tally changes")
	flag.DurationVar(&interval, "interval", 2*time.Second, "Polling interval in watch mode")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		color.Red("database URL required (use -d or DATABASE_URL env)")
		os.Exit(1)
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = cliparse.DatabaseSQLite
	}

	conn, err := db.Open(cfg)
	if err != nil {
		color.Red("database connection failed: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := tally.New(conn, interval)

	if !watch {
		snap, _, err := agg.Refresh(ctx)
		if err != nil {
			color.Red("tally failed: %v", err)
			os.Exit(1)
		}
		render(os.Stdout, snap)
		return
	}

	updates, cancel := agg.Subscribe()
	defer cancel()

	go func() {
		if err := agg.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("tally stopped", "error", err)
		}
	}()
	if cfg.DatabaseType == cliparse.DatabasePostgres {
		go tally.ListenPostgres(ctx, cfg.DatabaseURL, agg)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			render(os.Stdout, snap)
		}
	}
}

// render writes one table per position, then the turnout line
func render(w io.Writer, snap models.TallySnapshot) {
	heading := color.New(color.FgCyan, color.Bold)
	title := color.New(color.FgYellow)
	changed := color.New(color.FgGreen, color.Bold).SprintFunc()

	heading.Fprintf(w, "\n=== Election tally v%d (%s) ===\n", snap.Version, humanize.Time(snap.ComputedAt))

	for _, p := range snap.Positions {
		title.Fprintf(w, "\n%s\n", p.Title)

		table := tablewriter.NewWriter(w)
		table.SetAutoFormatHeaders(false)
		table.SetHeader([]string{"Rank", "Candidate", "Votes", "Share"})
		table.SetColumnAlignment([]int{
			tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		})

		for _, c := range p.Candidates {
			name := c.Name
			if c.JustChanged {
				name = changed(name + " +")
			}
			table.Append([]string{
				fmt.Sprintf("%d", c.Rank),
				name,
				humanize.Comma(int64(c.Votes)),
				fmt.Sprintf("%.2f%%", c.Percentage),
			})
		}
		table.SetFooter([]string{"", "Total", humanize.Comma(int64(p.TotalVotes)),
			fmt.Sprintf("%s abstained", humanize.Comma(int64(p.Abstentions)))})
		table.Render()
	}

	fmt.Fprintf(w, "\nTurnout: %s of %s registered voters (%.2f%%)\n",
		humanize.Comma(int64(snap.Turnout.Voted)),
		humanize.Comma(int64(snap.Turnout.Registered)),
		snap.Turnout.Percentage)
}
