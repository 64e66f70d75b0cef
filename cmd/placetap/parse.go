package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
	"github.com/rendis/placetap/internal/runner"
	"github.com/rendis/placetap/internal/tui"
)

func runParse(args []string) error {
	var f scrapeFlags
	var htmlPath, pageURL string

	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	f.register(fs)
	fs.StringVar(&htmlPath, "html", "", "Saved results page (required)")
	fs.StringVar(&pageURL, "url", "https://www.google.com/maps/search/", "URL the page was saved from")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: placetap parse [flags]\n\nExtracts result cards from a saved page. The detail view is never opened.\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  placetap parse -html cafes_lisbon.html -category cafes -location Lisbon\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if htmlPath == "" || f.category == "" || f.location == "" {
		return fmt.Errorf("-html, -category and -location are required")
	}

	data, err := os.ReadFile(htmlPath)
	if err != nil {
		return fmt.Errorf("reading page: %w", err)
	}

	cfg, err := f.load(fs)
	if err != nil {
		return err
	}
	cfg.Pipeline.UseDetailView = false
	cfg.Pipeline.MaxScrollRounds = 1
	cfg.Timeouts.SettleMin, cfg.Timeouts.SettleMax, cfg.Timeouts.Click = 0, 0, 0

	target := model.NewTarget(f.category, f.location, cfg.Pipeline.MaxResults)
	sess, err := config.OpenSession(cfg.Storage.OutputDir, cfg.Log.Dir, cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer sess.Close()
	dbPath := sess.DBPath
	if f.dbPath != "" {
		dbPath = f.dbPath
	}
	sess.Logger.Info().Str("html", htmlPath).Str("db", dbPath).Msg("parse session start")

	ctx, cancel := signalContext()
	defer cancel()

	res, err := runner.Scrape(ctx, runner.Request{
		Target:     target,
		Config:     cfg,
		DBPath:     dbPath,
		Logger:     sess.Logger,
		SkipSearch: true,
		OpenSession: func(context.Context) (browser.Session, error) {
			return browser.NewDocumentSession(string(data), pageURL, browser.Hooks{})
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("parsing: %w", err)
	}

	printSummary(target, res, dbPath, sess.LogPath)
	tui.SaveRecent(dbPath)
	return nil
}
