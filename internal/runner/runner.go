// Package runner wires a browsing session, the extraction engine and the sqlite store
// into one scrape job, shared by the CLI and the TUI.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/phuslu/log"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/scraper"
	"github.com/rendis/placetap/internal/engine/storage"
	"github.com/rendis/placetap/internal/model"
)

// Geocoder resolves the target location when geo filtering is on.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (geo.Area, error)
}

// Request describes one scrape job.
type Request struct {
	Target model.ExtractionTarget
	Config config.Config
	DBPath string
	Logger *log.Logger

	// Stats receives live counters; nil lets the engine allocate them.
	Stats   *scraper.Stats
	OnPlace func(model.PlaceRecord, model.SaveResult)
	Quiet   bool

	// OpenSession overrides the live Chrome session.
	OpenSession func(ctx context.Context) (browser.Session, error)
	// Geocoder overrides the Nominatim client.
	Geocoder Geocoder
	// SkipSearch extracts from whatever the session already shows.
	SkipSearch bool
}

// Result summarizes a finished job.
type Result struct {
	Stats    *scraper.Stats
	Area     *geo.Area
	Total    int
	Duration time.Duration
}

// Scrape runs req to completion. Cancellation is not an error: the partial result is returned
// with ctx.Err() so callers can report it.
func Scrape(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	logger := req.Logger
	if logger == nil {
		logger = scraper.NopLogger()
	}
	cfg := req.Config

	ro := &scraper.RunOptions{
		OnPlace:        req.OnPlace,
		SuppressStderr: req.Quiet,
		Stats:          req.Stats,
		MinRating:      cfg.Pipeline.MinRating,
		Lang:           cfg.Browser.Lang,
		SkipSearch:     req.SkipSearch,
	}

	res := &Result{}
	if cfg.Geo.Filter {
		gc := req.Geocoder
		if gc == nil {
			gc = geo.NewGeocoder(cfg.Browser.Proxy,
				geo.WithEndpoint(cfg.Geo.Endpoint), geo.WithUserAgent(cfg.Geo.UserAgent), geo.WithLanguage(cfg.Browser.Lang))
		}
		area, err := gc.Geocode(ctx, req.Target.Location)
		if err != nil {
			return nil, fmt.Errorf("geocoding %q: %w", req.Target.Location, err)
		}
		res.Area = &area
		ro.Center = &area.Center
		if cfg.Geo.RadiusKm > 0 {
			ro.GeoFilter = orb.MultiPolygon{geo.Circle(area.Center, cfg.Geo.RadiusKm, 48)}
			ro.Zoom = 14
		} else {
			ro.GeoFilter = area.Polygon()
			ro.Zoom = geo.ZoomFor(area.Bound)
		}
		logger.Info().Str("area", area.Name).Float64("lat", area.Center.Lat()).Float64("lng", area.Center.Lon()).
			Int("zoom", ro.Zoom).Float64("radius_km", cfg.Geo.RadiusKm).Msg("geo filter enabled")
	}

	store, err := storage.NewStore(req.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	open := req.OpenSession
	if open == nil {
		open = func(ctx context.Context) (browser.Session, error) {
			return browser.NewChromeSession(ctx, cfg.Chrome())
		}
	}
	sess, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening browser: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing browser")
		}
	}()

	stats, runErr := scraper.Run(ctx, sess, req.Target, cfg.Options(), store, logger, ro)
	res.Stats = stats
	res.Duration = time.Since(start).Truncate(time.Second)
	if total, err := store.Count(); err == nil {
		res.Total = total
	}
	if stats != nil {
		logger.Info().Int64("candidates", stats.Candidates.Load()).Int64("stored", stats.Stored.Load()).
			Int64("existing", stats.Existing.Load()).Int64("errors", stats.Errors.Load()).
			Int("total_in_db", res.Total).Dur("duration", res.Duration).Msg("job finished")
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return res, runErr
	}
	return res, ctx.Err()
}
