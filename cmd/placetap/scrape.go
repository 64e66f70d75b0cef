package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/model"
	"github.com/rendis/placetap/internal/runner"
	"github.com/rendis/placetap/internal/tui"
)

// scrapeFlags are the knobs shared by scrape and parse. Only flags given on the
// command line override the loaded config.
type scrapeFlags struct {
	category, location  string
	configPath, envFile string
	outputDir, dbPath   string
	proxy               string
	maxResults          int
	minRating           float64
	radiusKm            float64
	headless            bool
	noDetail            bool
	reviews, media      bool
	geoFilter           bool
	debug               bool
}

func (f *scrapeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.category, "category", "", "Business category to search, e.g. cafes (required)")
	fs.StringVar(&f.location, "location", "", "Location to search in, e.g. Lisbon (required)")
	fs.IntVar(&f.maxResults, "max", 0, "Max results to extract (default from config: 20)")
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default ./placetap.yaml)")
	fs.StringVar(&f.envFile, "env", "", "Env file (default ./.env)")
	fs.StringVar(&f.outputDir, "output", "", "Output directory for session files")
	fs.StringVar(&f.dbPath, "db", "", "Existing .db to append to (default: new file per session)")
	fs.BoolVar(&f.noDetail, "no-detail", false, "Extract from result cards only, never open the detail view")
	fs.BoolVar(&f.reviews, "reviews", false, "Extract reviews from the detail view")
	fs.BoolVar(&f.media, "media", false, "Extract photo and video URLs from the detail view")
	fs.Float64Var(&f.minRating, "min-rating", 0, "Minimum star rating filter")
	fs.BoolVar(&f.debug, "debug", false, "Verbose logs, mirrored to stderr")
}

func (f *scrapeFlags) registerBrowser(fs *flag.FlagSet) {
	fs.BoolVar(&f.headless, "headless", true, "Run Chrome headless")
	fs.StringVar(&f.proxy, "proxy", "", "HTTP/SOCKS5 proxy URL")
	fs.BoolVar(&f.geoFilter, "geo-filter", false, "Drop results outside the geocoded location")
	fs.Float64Var(&f.radiusKm, "radius", 0, "With -geo-filter, keep results within this many km of the location center")
}

// load reads the config and applies the flags that were set explicitly.
func (f *scrapeFlags) load(fs *flag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "max":
			cfg.Pipeline.MaxResults = f.maxResults
		case "output":
			cfg.Storage.OutputDir = f.outputDir
		case "no-detail":
			cfg.Pipeline.UseDetailView = !f.noDetail
		case "reviews":
			cfg.Pipeline.FetchReviews = f.reviews
		case "media":
			cfg.Pipeline.FetchMedia = f.media
		case "min-rating":
			cfg.Pipeline.MinRating = f.minRating
		case "debug":
			cfg.Log.Debug = f.debug
		case "headless":
			cfg.Browser.Headless = f.headless
		case "proxy":
			cfg.Browser.Proxy = f.proxy
		case "geo-filter":
			cfg.Geo.Filter = f.geoFilter
		case "radius":
			cfg.Geo.RadiusKm = f.radiusKm
		}
	})
	return cfg, cfg.Validate()
}

func runScrape(args []string) error {
	var f scrapeFlags
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	f.register(fs)
	f.registerBrowser(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: placetap scrape [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  placetap scrape -category cafes -location Lisbon -output ./projects\n")
		fmt.Fprintf(os.Stderr, "  placetap scrape -category dentists -location \"Porto, Portugal\" -max 50 -reviews -media\n")
		fmt.Fprintf(os.Stderr, "  placetap scrape -category bars -location Madrid -geo-filter -radius 3\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.category == "" || f.location == "" {
		return fmt.Errorf("-category and -location are required")
	}

	cfg, err := f.load(fs)
	if err != nil {
		return err
	}
	target := model.NewTarget(f.category, f.location, cfg.Pipeline.MaxResults)
	if err := target.Validate(); err != nil {
		return err
	}

	sess, err := config.OpenSession(cfg.Storage.OutputDir, cfg.Log.Dir, cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer sess.Close()
	dbPath := sess.DBPath
	if f.dbPath != "" {
		dbPath = f.dbPath
	}
	sess.Logger.Info().Str("category", target.Category).Str("location", target.Location).
		Int("max_results", target.MaxResults).Bool("headless", cfg.Browser.Headless).
		Bool("geo_filter", cfg.Geo.Filter).Str("db", dbPath).Msg("session start")
	fmt.Fprintf(os.Stderr, "Log: %s\n", sess.LogPath)

	ctx, cancel := signalContext()
	defer cancel()

	res, err := runner.Scrape(ctx, runner.Request{
		Target: target,
		Config: cfg,
		DBPath: dbPath,
		Logger: sess.Logger,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scraping: %w", err)
	}

	printSummary(target, res, dbPath, sess.LogPath)
	tui.SaveRecent(dbPath)
	return nil
}

// signalContext is cancelled on SIGINT/SIGTERM; the engine then returns to the list,
// closes the browser and the partial results stay stored.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func printSummary(target model.ExtractionTarget, res *runner.Result, dbPath, logPath string) {
	if res == nil || res.Stats == nil {
		return
	}
	s := res.Stats
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  PlaceTap Complete\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Query:      %s\n", target.Query())
	if res.Area != nil {
		fmt.Fprintf(os.Stderr, "  Area:       %s\n", res.Area.Name)
	}
	fmt.Fprintf(os.Stderr, "  Candidates: %d (rendered %d)\n", s.Candidates.Load(), s.Rendered.Load())
	fmt.Fprintf(os.Stderr, "  Extracted:  %d (detail %d, summary %d)\n", s.Processed.Load(), s.Detail.Load(), s.Summary.Load())
	fmt.Fprintf(os.Stderr, "  Stored:     %d new, %d already known\n", s.Stored.Load(), s.Existing.Load())
	fmt.Fprintf(os.Stderr, "  Filtered:   %d\n", s.Filtered.Load())
	fmt.Fprintf(os.Stderr, "  Errors:     %d\n", s.Errors.Load())
	fmt.Fprintf(os.Stderr, "  In DB:      %d\n", res.Total)
	fmt.Fprintf(os.Stderr, "  Duration:   %s\n", res.Duration)
	fmt.Fprintf(os.Stderr, "  Database:   %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "  Log:        %s\n", logPath)
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
}
